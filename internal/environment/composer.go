package environment

import (
	"sort"
	"strconv"
	"strings"
)

// Variable names available to value templates.
const (
	VarHost             = "HOST"
	VarBackendPort      = "BACKEND_PORT"
	VarFrontendPort     = "FRONTEND_PORT"
	VarBackendURL       = "BACKEND_URL"
	VarFrontendURL      = "FRONTEND_URL"
	VarAppDataDirectory = "APP_DATA_DIRECTORY"
	VarTempDirectory    = "TEMP_DIRECTORY"
	VarUserConfigPath   = "USER_CONFIG_PATH"
)

// Switch names usable as flag sources.
const (
	SwitchDebug = "debug"
	SwitchDev   = "dev"
)

// Ports carries the ports assigned for one run. Zero means unassigned.
type Ports struct {
	Backend  int
	Frontend int
}

// Paths are filesystem locations passed through verbatim.
type Paths struct {
	AppData    string
	Temp       string
	UserConfig string
}

// Inputs is everything composition depends on.
type Inputs struct {
	Base     Set
	User     Set
	Ports    Ports
	Paths    Paths
	Host     string
	Switches map[string]bool
}

// Flag renders a named switch as a service-specific token.
type Flag struct {
	Source string `yaml:"source"`
	FlagTokens `yaml:",inline"`
}

// ServicePolicy describes how one service's environment is built.
type ServicePolicy struct {
	// Forward is the allow-list applied to the host environment and user settings.
	Forward AllowList `yaml:"forward,omitempty"`
	// Set holds value templates expanded against the run variables.
	Set map[string]string `yaml:"set,omitempty"`
	// Flags renders switches as literal tokens.
	Flags map[string]Flag `yaml:"flags,omitempty"`
}

// Variables returns the computed template variables for in.
func (in Inputs) Variables() Set {
	host := in.Host
	if host == "" {
		host = "localhost"
	}
	vars := Set{VarHost: host}
	if in.Ports.Backend > 0 {
		vars[VarBackendPort] = strconv.Itoa(in.Ports.Backend)
		vars[VarBackendURL] = URL(host, in.Ports.Backend)
	}
	if in.Ports.Frontend > 0 {
		vars[VarFrontendPort] = strconv.Itoa(in.Ports.Frontend)
		vars[VarFrontendURL] = URL(host, in.Ports.Frontend)
	}
	if in.Paths.AppData != "" {
		vars[VarAppDataDirectory] = in.Paths.AppData
	}
	if in.Paths.Temp != "" {
		vars[VarTempDirectory] = in.Paths.Temp
	}
	if in.Paths.UserConfig != "" {
		vars[VarUserConfigPath] = in.Paths.UserConfig
	}
	return vars
}

// URL renders the loopback http URL for port.
func URL(host string, port int) string {
	if host == "" {
		host = "localhost"
	}
	return "http://" + host + ":" + strconv.Itoa(port)
}

// Compose builds the environment for one service. It never fails: absent inputs
// produce absent keys.
func Compose(policy ServicePolicy, in Inputs) Set {
	out := make(Set)

	// User settings first so the live host environment wins.
	for k, v := range policy.Forward.Filter(in.User) {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range policy.Forward.Filter(in.Base) {
		out[k] = v
	}

	// Templates only see computed variables and already-forwarded keys.
	vars := in.Variables()
	forwarded := out.Clone()
	lookupForwarded := func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		v, ok := forwarded[name]
		return v, ok
	}

	keys := make([]string, 0, len(policy.Set))
	for k := range policy.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := Expand(policy.Set[k], lookupForwarded); v != "" {
			out[k] = v
		}
	}

	for k, flag := range policy.Flags {
		out[k] = RenderFlag(in.Switches[flag.Source], flag.FlagTokens)
	}

	return out
}

// ComposeAll composes every service in policies.
func ComposeAll(policies map[string]ServicePolicy, in Inputs) map[string]Set {
	out := make(map[string]Set, len(policies))
	for name, policy := range policies {
		out[name] = Compose(policy, in)
	}
	return out
}

// Expand replaces ${NAME} and ${NAME:-default} references using lookup.
// Unknown names without a default expand to the empty string.
func Expand(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 >= len(s) || s[i+1] != '{' {
			b.WriteByte(s[i])
			continue
		}
		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			b.WriteString(s[i:])
			break
		}
		expr := s[i+2 : i+2+end]
		name, def, hasDefault := strings.Cut(expr, ":-")
		if v, ok := lookup(name); ok && v != "" {
			b.WriteString(v)
		} else if hasDefault {
			b.WriteString(def)
		}
		i += end + 2
	}
	return b.String()
}
