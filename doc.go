/*
Package websession provides server-side sessions for Go web applications:
creation, validation, persistence, expiry and CSRF-token binding, behind
pluggable storage backends with optional transparent encryption.

Key Features:

  - Sessions: 40-character alphanumeric ids and CSRF tokens, an expiry in
    epoch milliseconds and a data bag with dotted-path reads.
  - Store protocol: a Codec turns a session into
    base64(JSON{id, expiry, encrypted, session}) and back. The payload is
    the JSON data bag, encrypted by an Encrypter unless encryption is
    switched off with ShouldEncrypt(false).
  - Modular Storage: file (afero), SQLite (CGO-free), PostgreSQL, Memcached
    and Redis backends, selected by name through a Registry.
  - Failure isolation: backends never return errors from Save, Read,
    Remove or Clear. Failures are logged with zerolog and reported as
    false or nil, so a corrupt record looks exactly like a missing one.
  - Request lifecycle: one Manager per request, passed through the request
    context, with Middleware for net/http.
  - Maintenance: a cron-driven Sweeper for expired records and Prometheus
    metrics for store operations.

Usage:

	key, _ := websession.GenerateKey()
	enc, err := websession.NewAEADEncrypter(key)
	if err != nil {
		log.Fatal(err)
	}
	codec := websession.NewCodec(enc)

	settings, err := websession.LoadSettings("config.toml")
	if err != nil {
		log.Fatal(err)
	}

	cfg := websession.Config{
		Settings: settings,
		Registry: websession.NewDefaultRegistry(codec),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s := websession.SessionFromContext(r.Context())
		s.Set("visits", s.Get("visits", 0.0).(float64)+1)
	})
	http.ListenAndServe(":8080", websession.Middleware(cfg)(mux))

Configuration keys read by the Manager (defaults in parentheses):
session.store ("file"), session.lifetime (120 minutes), session.cookie
("session_id"), session.csrf_cookie ("XSRF-TOKEN"), session.path ("/"),
session.domain (""), session.secure (false), session.httpOnly (false),
session.raw (true), session.sameSite ("NONE") and session.expire_on_close
(false).

Thread Safety:

Stores, Codecs, Registries and Sessions are safe for concurrent use. A
Manager belongs to a single request. Two requests saving the same session
id race and the last write wins; FileConfig.SerializeWrites serializes
writes per id for the file store.
*/
package websession
