package program

import "sort"

// Families known to swupdate.
const (
	Arch    Family = "arch"
	AUR     Family = "aur"
	Deb     Family = "deb"
	RPM     Family = "rpm"
	Portage Family = "portage"
	Eopkg   Family = "eopkg"
	Nix     Family = "nix"
	Apk     Family = "apk"
	Snap    Family = "snap"
	Flatpak Family = "flatpak"
	Brew    Family = "brew"
	Choco   Family = "choco"
	Winget  Family = "winget"
	Rust    Family = "rust"
	JS      Family = "js"
)

var tables = map[Family]Table{
	Arch: {
		Family:  Arch,
		Purpose: "Arch package manager",
		Descriptors: []Descriptor{
			{Family: Arch, ID: "pacman", DisplayName: "Pacman", Executable: "pacman", UpdateArgs: []string{"-Syu"}, RequiresElevation: true},
			{Family: Arch, ID: "powerpill", DisplayName: "Powerpill", Executable: "powerpill", UpdateArgs: []string{"-Syu"}, RequiresElevation: true},
		},
	},
	AUR: {
		Family:  AUR,
		Purpose: "AUR helper",
		Descriptors: []Descriptor{
			{Family: AUR, ID: "yay", DisplayName: "Yay", Executable: "yay", UpdateArgs: []string{"-Syu", "--aur"}},
			{Family: AUR, ID: "aurutils", DisplayName: "aurutils", Executable: "aur", UpdateArgs: []string{"sync", "-u"}},
			{Family: AUR, ID: "pikaur", DisplayName: "Pikaur", Executable: "pikaur", UpdateArgs: []string{"-Sua"}},
			{Family: AUR, ID: "paru", DisplayName: "Paru", Executable: "paru", UpdateArgs: []string{"-Sua"}},
			{Family: AUR, ID: "pamac", DisplayName: "Pamac", Executable: "pamac", UpdateArgs: []string{"upgrade"}},
		},
	},
	Deb: {
		Family:  Deb,
		Purpose: "apt package manager",
		Descriptors: []Descriptor{
			{Family: Deb, ID: "apt", DisplayName: "Apt", Executable: "apt", UpdateArgs: []string{"upgrade"}, RequiresElevation: true},
			{Family: Deb, ID: "apt-full", DisplayName: "Apt (full-upgrade)", Executable: "apt", UpdateArgs: []string{"full-upgrade"}, RequiresElevation: true},
			{Family: Deb, ID: "aptitude", DisplayName: "Aptitude", Executable: "aptitude", UpdateArgs: []string{"safe-upgrade"}, RequiresElevation: true},
		},
	},
	RPM: {
		Family:  RPM,
		Purpose: "RPM package manager",
		Descriptors: []Descriptor{
			{Family: RPM, ID: "dnf", DisplayName: "DNF", Executable: "dnf", UpdateArgs: []string{"upgrade"}, RequiresElevation: true},
			{Family: RPM, ID: "yum", DisplayName: "YUM", Executable: "yum", UpdateArgs: []string{"update"}, RequiresElevation: true},
			{Family: RPM, ID: "zypper", DisplayName: "Zypper", Executable: "zypper", UpdateArgs: []string{"update"}, RequiresElevation: true},
		},
	},
	Portage: {
		Family:  Portage,
		Purpose: "Portage front-end",
		Descriptors: []Descriptor{
			{Family: Portage, ID: "emerge", DisplayName: "Emerge", Executable: "emerge", UpdateArgs: []string{"--update", "--deep", "--newuse", "@world"}, RequiresElevation: true},
		},
	},
	Eopkg: {
		Family:  Eopkg,
		Purpose: "eopkg package manager",
		Descriptors: []Descriptor{
			{Family: Eopkg, ID: "eopkg", DisplayName: "eopkg", Executable: "eopkg", UpdateArgs: []string{"upgrade"}, RequiresElevation: true},
		},
	},
	Nix: {
		Family:  Nix,
		Purpose: "Nix channel updater",
		Descriptors: []Descriptor{
			{Family: Nix, ID: "nix-channel", DisplayName: "Nix channels", Executable: "nix-channel", UpdateArgs: []string{"--update"}},
		},
	},
	Apk: {
		Family:  Apk,
		Purpose: "Alpine package manager",
		Descriptors: []Descriptor{
			{Family: Apk, ID: "apk", DisplayName: "apk", Executable: "apk", UpdateArgs: []string{"upgrade"}, RequiresElevation: true},
		},
	},
	Snap: {
		Family:  Snap,
		Purpose: "snap client",
		Descriptors: []Descriptor{
			{Family: Snap, ID: "snap", DisplayName: "Snap", Executable: "snap", UpdateArgs: []string{"refresh"}, RequiresElevation: true},
		},
	},
	Flatpak: {
		Family:  Flatpak,
		Purpose: "Flatpak client",
		Descriptors: []Descriptor{
			{Family: Flatpak, ID: "flatpak", DisplayName: "Flatpak", Executable: "flatpak", UpdateArgs: []string{"update"}},
		},
	},
	Brew: {
		Family:  Brew,
		Purpose: "Homebrew client",
		Descriptors: []Descriptor{
			{Family: Brew, ID: "brew", DisplayName: "Homebrew", Executable: "brew", UpdateArgs: []string{"upgrade"}},
		},
	},
	Choco: {
		Family:  Choco,
		Purpose: "Chocolatey client",
		Descriptors: []Descriptor{
			{Family: Choco, ID: "choco", DisplayName: "Chocolatey", Executable: "choco", UpdateArgs: []string{"upgrade", "all"}, RequiresElevation: true},
		},
	},
	Winget: {
		Family:  Winget,
		Purpose: "winget client",
		Descriptors: []Descriptor{
			{Family: Winget, ID: "winget", DisplayName: "winget", Executable: "winget", UpdateArgs: []string{"upgrade", "--all"}},
		},
	},
	Rust: {
		Family:    Rust,
		Purpose:   "Rust toolchain updater",
		Composite: true,
		Descriptors: []Descriptor{
			{Family: Rust, ID: "rustup", DisplayName: "Rustup", Executable: "rustup", UpdateArgs: []string{"update"}},
			{Family: Rust, ID: "cargo", DisplayName: "Cargo (install-update)", Executable: "cargo", UpdateArgs: []string{"install-update", "-a"}},
		},
	},
	JS: {
		Family:    JS,
		Purpose:   "JavaScript package manager",
		Composite: true,
		Descriptors: []Descriptor{
			{Family: JS, ID: "npm", DisplayName: "npm", Executable: "npm", UpdateArgs: []string{"update", "-g"}},
			{Family: JS, ID: "yarn", DisplayName: "Yarn", Executable: "yarn", UpdateArgs: []string{"global", "upgrade"}},
		},
	},
}

// Lookup returns the descriptor table for a family.
func Lookup(f Family) (Table, bool) {
	t, ok := tables[f]
	return t, ok
}

// Families returns every known family, sorted by name.
func Families() []Family {
	out := make([]Family, 0, len(tables))
	for f := range tables {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tables returns every descriptor table, sorted by family name.
func Tables() []Table {
	families := Families()
	out := make([]Table, 0, len(families))
	for _, f := range families {
		out = append(out, tables[f])
	}
	return out
}
