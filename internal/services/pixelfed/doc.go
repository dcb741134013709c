// Package pixelfed publishes posts through the Mastodon-compatible REST API
// that Pixelfed (and Mastodon itself) expose.
//
// Publish is a two-step exchange: the media file is uploaded to
// /api/v1/media with its alt text, then a status referencing the returned
// media id is created at /api/v1/statuses. The status request carries an
// Idempotency-Key so a retried submission after a crash is de-duplicated by
// the server.
//
// A local file problem surfaces as ErrMediaNotFound; anything the server
// refuses surfaces as *RemoteRejectedError. Callers tell them apart with
// errors.Is and errors.As.
package pixelfed
