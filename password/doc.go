// Package password hashes and verifies principal passwords.
//
// Two encodings are understood:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//	$2a$<cost>$<salt+hash>   (bcrypt, also $2b$ and $2y$)
//
// New hashes are produced by the configured primary [Hasher]. [Multi] verifies
// either encoding and reports through NeedsRehash when a stored hash should be
// replaced on the next successful login.
//
// The package never stores passwords and never logs plaintext. Password
// policy is left to the caller.
package password
