// Package appconfig loads the server configuration.
//
// Values come from built-in defaults, an optional config file
// (memorymatch.yaml, .json or .toml) and environment variables prefixed with
// MEMORYMATCH_, in increasing precedence. Nested keys map to environment
// names with underscores, so server.port is MEMORYMATCH_SERVER_PORT.
// LoadDotEnv can seed the environment from a .env file first.
//
//	appconfig.LoadDotEnv()
//	cfg, err := appconfig.Load("")
//	if err != nil {
//		return err
//	}
//	http.ListenAndServe(cfg.Addr(), handler)
package appconfig
