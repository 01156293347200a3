// Package refresh keeps the single live refresh token of each principal.
//
// Only the hex SHA-256 of a token is ever stored. Issuing a new token for a
// principal overwrites the previous hash, which is how older tokens are
// revoked. [Store.Swap] is the compare-and-swap used by the refresh flow:
// when two requests present the same token concurrently, exactly one of
// them rotates it.
//
// Two implementations are provided. [PrincipalStore] writes the hash through
// to the principal record and serialises operations per principal with a
// striped lock. [RedisStore] keeps the hash in Redis and performs the swap in
// a Lua script so it stays atomic across instances.
package refresh
