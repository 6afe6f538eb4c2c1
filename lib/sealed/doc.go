// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts the stored OAuth refresh token at rest with
// filippo.io/age.
//
// The credential store generates one x25519 identity per state
// directory and seals each refresh token to that identity's recipient.
// Ciphertext is raw age binary (the credential record is CBOR, so no
// text armoring is needed). Private keys and decrypted plaintext come
// back as [secret.Buffer] values.
//
//   - [GenerateKeypair] creates an identity
//   - [Encrypt] seals plaintext to one or more recipients
//   - [Decrypt] opens ciphertext with a private key
//   - [RecipientOf] derives the public recipient of a private key
package sealed
