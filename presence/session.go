// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/fault"
	"github.com/vcstatus/vcstatus/oauth"
	"github.com/vcstatus/vcstatus/rpc"
)

var (
	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("presence: not connected")

	// ErrAlreadyConnected is returned by Connect on a live session.
	ErrAlreadyConnected = errors.New("presence: already connected")

	// ErrAuthorizationCancelled ends a session whose user declined the
	// authorization prompt. Reconnecting would prompt again.
	ErrAuthorizationCancelled = errors.New("presence: user cancelled authorization")

	// ErrEventStreamFailed ends a session whose event connection kept
	// failing to produce readable messages.
	ErrEventStreamFailed = errors.New("presence: event stream failed repeatedly")
)

// maxConsecutiveReadFailures ends the event loop when this many reads
// in a row fail without the connection reporting itself closed.
const maxConsecutiveReadFailures = 8

// Tokens obtains access tokens. *oauth.Manager implements it.
type Tokens interface {
	Reauthenticate(ctx context.Context) (*oauth.TokenPair, error)
	Authorize(ctx context.Context, code string) (*oauth.TokenPair, error)
}

// Dialer opens one connection to the host. Connect calls it twice: the
// first connection carries commands, the second the event stream.
type Dialer func(ctx context.Context) (rpc.Conn, error)

// Config holds the dependencies of a Session.
type Config struct {
	// ClientID is the application id sent with AUTHORIZE.
	ClientID string

	// Scopes requested with AUTHORIZE. Defaults to rpc and identify.
	Scopes []string

	Dial   Dialer
	Tokens Tokens

	// Notifier receives state-change notifications. Defaults to
	// discarding them.
	Notifier Notifier

	// ReplyTimeout bounds each command round trip. Zero disables it.
	ReplyTimeout time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session is one authenticated connection to the host.
type Session struct {
	clientID     string
	scopes       []string
	dial         Dialer
	tokens       Tokens
	notifier     Notifier
	replyTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	mu       sync.Mutex
	state    State
	commands *rpc.CommandChannel
	events   *rpc.EventChannel
	cancel   context.CancelFunc
	done     chan struct{}
	result   error

	// commandFailure is set when the command connection fails while
	// the loop runs, and becomes the loop's result.
	commandFailure error

	// subscribedChannel is the channel whose per-channel events are
	// subscribed. Only the event loop touches it.
	subscribedChannel string
}

// NewSession returns a disconnected Session.
func NewSession(config Config) (*Session, error) {
	if config.ClientID == "" {
		return nil, errors.New("presence: client id is required")
	}
	if config.Dial == nil {
		return nil, errors.New("presence: dialer is required")
	}
	if config.Tokens == nil {
		return nil, errors.New("presence: token source is required")
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{"rpc", "identify"}
	}
	notifier := config.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		clientID:     config.ClientID,
		scopes:       scopes,
		dial:         config.Dial,
		tokens:       config.Tokens,
		notifier:     notifier,
		replyTimeout: config.ReplyTimeout,
		clock:        clk,
		logger:       logger,
		state:        newState(),
	}, nil
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Connect dials both connections, authenticates, and starts the event
// loop. It returns once the loop is running; the host's confirmation
// of the access token, and everything after it, arrives on the loop.
//
// Authentication first tries the stored session. If that fails for any
// reason an error notification is emitted and AUTHORIZE is sent once on
// the event connection; the user's answer arrives on the loop.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state.reset()
	s.state.setPhase(Connecting)
	s.result = nil
	s.commandFailure = nil
	s.mu.Unlock()

	commandConn, err := s.dial(ctx)
	if err != nil {
		s.abort()
		return fault.Wrap(fault.Connect, err, "opening command connection")
	}
	eventConn, err := s.dial(ctx)
	if err != nil {
		commandConn.Close()
		s.abort()
		return fault.Wrap(fault.Connect, err, "opening event connection")
	}

	commands := rpc.NewCommandChannel(commandConn, rpc.CommandOptions{
		ReplyTimeout: s.replyTimeout,
		Clock:        s.clock,
		Logger:       s.logger.With("connection", "command"),
	})
	events := rpc.NewEventChannel(eventConn, s.logger.With("connection", "event"))

	s.mu.Lock()
	s.commands = commands
	s.events = events
	s.state.setPhase(ReAuthenticating)
	s.mu.Unlock()

	if err := s.reauthenticate(ctx, commands, events); err != nil {
		if lost := commands.Err(); lost != nil {
			commands.Close()
			events.Close()
			s.abort()
			return fault.Wrap(fault.Connect, lost, "authenticating command connection")
		}
		s.logger.Info("stored session unusable, requesting authorization", "error", err)
		s.notifier.Notify(EventError, asFault(fault.ReAuth, err, "reauthentication failed"))

		s.mu.Lock()
		s.state.setPhase(Authorizing)
		s.mu.Unlock()

		if err := events.Authorize(s.clientID, s.scopes); err != nil {
			commands.Close()
			events.Close()
			s.abort()
			return err
		}
	}

	loopContext, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.subscribedChannel = ""
	go s.run(loopContext, commands, events, done)
	go s.watchCommands(loopContext, commands, events, done)
	return nil
}

// watchCommands ends the loop once a command reply read fails.
func (s *Session) watchCommands(ctx context.Context, commands *rpc.CommandChannel, events *rpc.EventChannel, done <-chan struct{}) {
	select {
	case <-commands.Failed():
	case <-done:
		return
	}
	if ctx.Err() != nil {
		return
	}
	cause := commands.Err()

	s.mu.Lock()
	current := s.events == events
	if current {
		s.commandFailure = cause
	}
	s.mu.Unlock()
	if !current {
		return
	}
	s.logger.Warn("command connection failed, ending session", "error", cause)
	events.Close()
}

// reauthenticate refreshes the stored session and presents the access
// token on both connections.
func (s *Session) reauthenticate(ctx context.Context, commands *rpc.CommandChannel, events *rpc.EventChannel) error {
	pair, err := s.tokens.Reauthenticate(ctx)
	if err != nil {
		return err
	}
	defer pair.Close()
	return s.sendToken(ctx, commands, events, pair)
}

// sendToken authenticates the command connection, waiting for the
// host to accept the token, then sends it on the event connection.
func (s *Session) sendToken(ctx context.Context, commands *rpc.CommandChannel, events *rpc.EventChannel, pair *oauth.TokenPair) error {
	token := pair.AccessToken.String()
	data, err := commands.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	s.logger.Info("command connection authenticated", "user_id", data.User.ID)
	if err := events.Authenticate(token); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.setPhase(Authenticated)
	s.mu.Unlock()
	return nil
}

// abort returns a session that never got its loop running to
// Disconnected.
func (s *Session) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
	s.events = nil
	s.state.reset()
}

// Close ends the session: both connections are closed, the event loop
// is waited for, and the state is reset. Closing a session that is not
// connected does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	done, cancel := s.done, s.cancel
	commands, events := s.commands, s.events
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	events.Close()
	commands.Close()
	<-done
	return nil
}

// Wait blocks until the event loop ends and returns why: nil after
// Close, otherwise the error that ended it. With no loop running it
// returns the previous loop's result at once.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Connected reports whether the event loop is running.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// commandChannel returns the live command channel.
func (s *Session) commandChannel() (*rpc.CommandChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commands == nil || s.done == nil {
		return nil, ErrNotConnected
	}
	return s.commands, nil
}

// GetSelectedVoiceChannel asks the host which channel the user is in.
// The result is nil when they are not in voice.
func (s *Session) GetSelectedVoiceChannel(ctx context.Context) (*rpc.SelectedVoiceChannel, error) {
	commands, err := s.commandChannel()
	if err != nil {
		return nil, err
	}
	return commands.GetSelectedVoiceChannel(ctx)
}

// ToggleMute flips the user's mute setting.
func (s *Session) ToggleMute(ctx context.Context) (*rpc.VoiceSettings, error) {
	commands, err := s.commandChannel()
	if err != nil {
		return nil, err
	}
	return commands.ToggleMute(ctx)
}

// ToggleDeafen flips the user's deafen setting.
func (s *Session) ToggleDeafen(ctx context.Context) (*rpc.VoiceSettings, error) {
	commands, err := s.commandChannel()
	if err != nil {
		return nil, err
	}
	return commands.ToggleDeafen(ctx)
}

// LeaveVoiceChannel disconnects the user from voice. The state follows
// when the host's VOICE_CHANNEL_SELECT arrives on the event stream.
func (s *Session) LeaveVoiceChannel(ctx context.Context) error {
	commands, err := s.commandChannel()
	if err != nil {
		return err
	}
	return commands.LeaveVoiceChannel(ctx)
}

// SetActivity sets the activity shown for process pid.
func (s *Session) SetActivity(ctx context.Context, pid int, activity *rpc.Activity) error {
	commands, err := s.commandChannel()
	if err != nil {
		return err
	}
	return commands.SetActivity(ctx, pid, activity)
}

// ClearActivity removes the activity of process pid.
func (s *Session) ClearActivity(ctx context.Context, pid int) error {
	commands, err := s.commandChannel()
	if err != nil {
		return err
	}
	return commands.ClearActivity(ctx, pid)
}

// asFault returns err as a *fault.Error, wrapping it with kind when it
// is not one already.
func asFault(kind fault.Kind, err error, message string) *fault.Error {
	var faultError *fault.Error
	if errors.As(err, &faultError) {
		return faultError
	}
	return fault.Wrap(kind, err, "%s", message)
}
