package config

import "sort"

// Profiles are named configurations selectable with --profile.
var Profiles = map[string]*Config{
	"strict": {
		Strict:          true,
		CheckAssets:     true,
		ProbeTextures:   true,
		MaxIncludeDepth: 8,
		LogLevel:        "info",
		DataDir:         DefaultDataDir,
		Report:          ReportConfig{Format: "human", MaxLength: DefaultMaxLength},
	},
	"lenient": {
		CheckAssets:     false,
		MaxIncludeDepth: DefaultMaxIncludeDepth,
		LogLevel:        "warn",
		DataDir:         DefaultDataDir,
		Report:          ReportConfig{Format: "human", MaxLength: DefaultMaxLength},
	},
	"fast": {
		CheckAssets:     true,
		MaxIncludeDepth: DefaultMaxIncludeDepth,
		Workers:         32,
		LogLevel:        "error",
		DataDir:         DefaultDataDir,
		Report:          ReportConfig{Format: "json", MaxLength: DefaultMaxLength},
	},
}

// GetProfile returns a copy of the named profile, or nil.
func GetProfile(name string) *Config {
	p, ok := Profiles[name]
	if !ok {
		return nil
	}
	cfg := *p
	return &cfg
}

func ListProfiles() []string {
	names := make([]string, 0, len(Profiles))
	for name := range Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
