package config

import (
	"github.com/blackwell-systems/swupdate/internal/osinfo"
	"github.com/blackwell-systems/swupdate/internal/program"
	"github.com/blackwell-systems/swupdate/internal/router"
)

// Requests walks the configuration tree for the detected system and
// returns one router request per family. Disabled families are included
// with Enabled=false so that they show up as skipped. The distribution's
// own package manager is required; add-on tools such as snap or flatpak
// are optional and skipped when not installed.
func Requests(cfg *Config, info osinfo.Info) []router.Request {
	var reqs []router.Request

	switch info.OS {
	case "linux":
		reqs = append(reqs, linuxRequests(cfg.OS.Linux, info)...)
	case "darwin":
		reqs = append(reqs, router.Request{Label: "brew", Ecosystem: string(program.Brew), Enabled: cfg.OS.MacOS.Brew})
	case "windows":
		reqs = append(reqs,
			router.Request{Label: "choco", Ecosystem: string(program.Choco), Enabled: cfg.OS.Windows.Choco, Optional: true},
			router.Request{Label: "winget", Ecosystem: string(program.Winget), Enabled: cfg.OS.Windows.Winget, Optional: true},
		)
	default:
		reqs = append(reqs, router.Request{Label: "os packages", Ecosystem: info.OS, Enabled: true})
	}

	return append(reqs, languageRequests(cfg.Language)...)
}

func linuxRequests(l LinuxConfig, info osinfo.Info) []router.Request {
	var reqs []router.Request

	eco, ok := info.Ecosystem(router.Supported)
	if !ok {
		unknown := "linux"
		if c := info.Candidates(); len(c) > 0 {
			unknown = c[0]
		}
		reqs = append(reqs, router.Request{Label: "os packages", Ecosystem: unknown, Enabled: true})
	}

	var native program.Family
	if ok {
		native, _ = router.ResolveEcosystem(eco)
	}

	switch native {
	case program.Arch:
		reqs = append(reqs,
			router.Request{Label: "arch official", Ecosystem: eco, Enabled: l.Arch.Official, Preferred: program.ID(l.Arch.PreferredOfficial)},
			router.Request{Label: "arch aur", Ecosystem: string(program.AUR), Enabled: l.Arch.AUR, Preferred: program.ID(l.Arch.PreferredAUR), Optional: true},
		)
	case program.Deb:
		reqs = append(reqs, router.Request{Label: "deb", Ecosystem: eco, Enabled: l.Deb.Enabled, Preferred: program.ID(l.Deb.Preferred)})
	case program.RPM:
		reqs = append(reqs, router.Request{Label: "rpm", Ecosystem: eco, Enabled: l.RPM.Enabled, Preferred: program.ID(l.RPM.Preferred)})
	case program.Portage:
		reqs = append(reqs, router.Request{Label: "portage", Ecosystem: eco, Enabled: l.Portage})
	case program.Eopkg:
		reqs = append(reqs, router.Request{Label: "eopkg", Ecosystem: eco, Enabled: l.Eopkg})
	case program.Apk:
		reqs = append(reqs, router.Request{Label: "apk", Ecosystem: eco, Enabled: l.Apk})
	case program.Nix:
		reqs = append(reqs, router.Request{Label: "nix channels", Ecosystem: eco, Enabled: l.NixChannel})
	case "":
	default:
		// A distribution mapped to a tool family has no native section.
		reqs = append(reqs, router.Request{Label: string(native), Ecosystem: eco, Enabled: true})
	}

	if native != program.Nix {
		reqs = append(reqs, router.Request{Label: "nix channels", Ecosystem: string(program.Nix), Enabled: l.NixChannel, Optional: true})
	}
	reqs = append(reqs,
		router.Request{Label: "snap", Ecosystem: string(program.Snap), Enabled: l.Snap, Optional: true},
		router.Request{Label: "flatpak", Ecosystem: string(program.Flatpak), Enabled: l.Flatpak, Optional: true},
		router.Request{Label: "brew", Ecosystem: string(program.Brew), Enabled: l.Brew, Optional: true},
	)
	return reqs
}

func languageRequests(lc LanguageConfig) []router.Request {
	var rust []program.ID
	if lc.Rust.Rustup {
		rust = append(rust, "rustup")
	}
	if lc.Rust.Cargo {
		rust = append(rust, "cargo")
	}

	var js []program.ID
	if lc.JS.NPM {
		js = append(js, "npm")
	}
	if lc.JS.Yarn {
		js = append(js, "yarn")
	}

	return []router.Request{
		{Label: "rust", Ecosystem: string(program.Rust), Enabled: len(rust) > 0, Programs: rust, Optional: true},
		{Label: "js", Ecosystem: string(program.JS), Enabled: len(js) > 0, Programs: js, Optional: true},
	}
}
