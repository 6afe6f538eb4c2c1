// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Opcode identifies the kind of frame.
type Opcode uint32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4
)

func (o Opcode) String() string {
	switch o {
	case OpHandshake:
		return "handshake"
	case OpFrame:
		return "frame"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	}
	return fmt.Sprintf("opcode(%d)", uint32(o))
}

// MaxFrameSize bounds a frame body: 64 KiB.
const MaxFrameSize = 64 << 10

const headerSize = 8

// ErrFrameTooLarge is returned for bodies above MaxFrameSize.
var ErrFrameTooLarge = errors.New("ipc: frame exceeds maximum size")

// WriteFrame writes one frame as a single Write call.
func WriteFrame(writer io.Writer, opcode Opcode, body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}
	buffer := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint32(buffer[0:4], uint32(opcode))
	binary.LittleEndian.PutUint32(buffer[4:8], uint32(len(body)))
	copy(buffer[headerSize:], body)
	_, err := writer.Write(buffer)
	return err
}

// ReadFrame reads one frame. A clean EOF before the header is returned
// as io.EOF; EOF inside a frame is io.ErrUnexpectedEOF. The body of an
// oversized frame is read and discarded before ErrFrameTooLarge is
// returned, so the next call starts at the following header.
func ReadFrame(reader io.Reader) (Opcode, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(reader, header[:]); err != nil {
		return 0, nil, err
	}
	opcode := Opcode(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxFrameSize {
		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, nil, fmt.Errorf("%w: %s header declares %d bytes: %w", ErrFrameTooLarge, opcode, length, err)
		}
		return 0, nil, fmt.Errorf("%w: %s header declares %d bytes", ErrFrameTooLarge, opcode, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(reader, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, fmt.Errorf("reading %s body: %w", opcode, err)
	}
	return opcode, body, nil
}
