// Package config provides configuration management for deskshell.
//
// Configuration is loaded from several YAML sources and merged in order, with
// later sources overriding earlier ones:
//
//  1. Default configuration (built into the binary)
//  2. User configuration (~/.config/deskshell/config.yaml)
//  3. Project configuration (./.deskshell/config.yaml)
//  4. An explicit file passed with --config
//
// Each layer is decoded on top of the previous one, so a file only needs the
// fields it changes. Maps such as env.set are merged key by key; lists such as
// args and env.forward replace the previous value.
//
// # Example
//
//	mode: packaged
//	directories:
//	  base: /opt/slides
//	backend:
//	  packaged:
//	    command: ./fastapi
//	    args: ["--port", "${BACKEND_PORT}"]
//	  env:
//	    forward: [PATH, HOME, OPENAI_API_KEY, "API_KEY_*"]
//	  readyTimeout: 90s
//	frontend:
//	  probe:
//	    type: http
//	    path: /
//
// # Variable expansion
//
// Host, directories, commands and working directories may reference the
// environment of the launcher with ${VAR} or ${VAR:-default}; a leading ~ is
// replaced by the home directory. Service args and env.set values are not
// expanded at load time. They may reference the run variables BACKEND_PORT,
// FRONTEND_PORT, BACKEND_URL, FRONTEND_URL, APP_DATA_DIRECTORY,
// TEMP_DIRECTORY, USER_CONFIG_PATH and HOST, which are only known once ports
// have been allocated.
package config
