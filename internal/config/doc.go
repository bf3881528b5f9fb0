// Package config loads and watches the audit configuration file (licenseaudit.yaml).
//
// Top-level types:
//   - Config: channel_url, platforms, compressed, fetch_timeout, workers,
//     output_dir, outputs, auth, tls, log_level
//   - Outputs: file names of the four artifacts written per run
//   - AuthConfig: mode (bearer|basic|none), token_env, username, password_env;
//     Token() and Password() resolve from environment variables
//
// Load(path) reads the YAML file, applies defaults (conda-forge channel, the five
// standard platforms, zstd snapshots, 5m fetch timeout), then validates required
// fields and enums. A missing file is not an error: the defaults are returned.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. The parent directory is watched so
// the rename-then-create pattern of atomic-save editors keeps firing.
package config
