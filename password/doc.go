// Package password hashes and verifies login secrets with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters than the
// current configuration. [Argon2.VerifyDummy] burns one verification's worth
// of work for identities that have no stored hash.
//
// The package never stores secrets and never logs them.
package password
