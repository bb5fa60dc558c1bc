/*
Package log provides structured logging for the vault core, built on
zerolog. It is strictly an operational-tracing layer for "what happened"
events, never for secret material. Two packages log through it: client
(vault created) and procedure (step N of M failed, rolling back); memory,
vaultstore and snapshot do not log. Nothing
in this package ever receives a Buffer, a Key, or plaintext bytes; callers
pass only derived identifiers (client/vault ids as hex) and non-secret
metadata.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	log.WithClientID(hex.EncodeToString(cid[:])).Info().Msg("client opened")

	vaultLog := log.WithVaultID(hex.EncodeToString(vid[:]))
	vaultLog.Debug().Msg("record written")

	log.WithProcedure("Ed25519Sign").Info().Msg("step executed")

Never pass Buffer.String()/GoString() results into a log call expecting
real content — by design they always render as "hidden" (see pkg/memory).
*/
package log
