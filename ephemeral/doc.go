// Package ephemeral issues and redeems single-use opaque tokens for
// out-of-band flows such as password reset and email verification.
//
// A token is 32 bytes from crypto/rand, hex-encoded. Consume resolves it at
// most once:
//
//   - an unknown or already-consumed token yields [ErrNotFound];
//   - a token past its expiry is deleted and yields [ErrExpired];
//   - otherwise the entry is deleted and returned.
//
// Purpose checks are the caller's job: Consume burns the token before the
// caller sees which purpose it was minted for.
//
// [MemoryStore] keeps entries in process. [RedisStore] shares them between
// instances and stores only the SHA-256 of each token.
package ephemeral
