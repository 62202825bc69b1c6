package registry

import (
	"path"
	"runtime"
)

// configDir and dataDir are the per-platform user directories, written in
// ~/ form so the registry stays portable between machines of one platform.
func configDir() string {
	return "~/.config"
}

func dataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return "~/Library/Application Support"
	case "windows":
		return "~/AppData/Roaming"
	default:
		return "~/.local/share"
	}
}

// DefaultConfigs returns the configuration registry created on first use.
func DefaultConfigs() *ConfigRegistry {
	r := New[ConfigEntry]()
	r.Add("zshrc", ConfigEntry{
		Name:        "Zsh Configuration",
		SourcePath:  ".zshrc",
		TargetPath:  "~/.zshrc",
		Category:    CategoryShell,
		Enabled:     true,
		Description: Ptr("Main Zsh shell configuration file"),
	})
	r.Add("vimrc", ConfigEntry{
		Name:        "Vim Configuration",
		SourcePath:  ".vimrc",
		TargetPath:  "~/.vimrc",
		Category:    CategoryEditor,
		Enabled:     true,
		Description: Ptr("Vim editor configuration"),
	})
	r.Add("config", ConfigEntry{
		Name:        "General Config Directory",
		SourcePath:  "config",
		TargetPath:  configDir(),
		Category:    CategorySystem,
		Enabled:     true,
		Description: Ptr("General configuration directory for various applications"),
	})
	r.Add("vscode_settings", ConfigEntry{
		Name:        "VSCode Settings",
		SourcePath:  "vscode/settings.json",
		TargetPath:  path.Join(dataDir(), "Code/User/settings.json"),
		Category:    CategoryEditor,
		Enabled:     true,
		Description: Ptr("Visual Studio Code user settings"),
	})
	r.Add("vscode_keybindings", ConfigEntry{
		Name:        "VSCode Keybindings",
		SourcePath:  "vscode/keybindings.json",
		TargetPath:  path.Join(dataDir(), "Code/User/keybindings.json"),
		Category:    CategoryEditor,
		Enabled:     true,
		Description: Ptr("Visual Studio Code keybindings"),
	})
	r.Add("ghostty_config", ConfigEntry{
		Name:        "Ghostty Terminal Config",
		SourcePath:  "ghostty/config",
		TargetPath:  path.Join(configDir(), "ghostty/config"),
		Category:    CategoryTerminal,
		Enabled:     true,
		Description: Ptr("Ghostty terminal emulator configuration"),
	})
	return r
}

// DefaultEncrypted returns the encrypted registry created on first use.
func DefaultEncrypted() *EncryptedRegistry {
	r := New[EncryptedEntry]()
	r.Add("ssh_config", EncryptedEntry{
		Name:        "SSH Config",
		SourcePath:  "ssh/config",
		TargetPath:  "~/.ssh/config",
		Enabled:     true,
		Description: Ptr("SSH client configuration file"),
	})
	r.Add("ssh_private_key", EncryptedEntry{
		Name:            "SSH Private Key",
		SourcePath:      "ssh/id_ed25519",
		TargetPath:      "~/.ssh/id_ed25519",
		Enabled:         true,
		Description:     Ptr("SSH Ed25519 private key"),
		EncryptFilename: true,
	})
	return r
}

// DefaultPackages returns the package registry created on first use.
func DefaultPackages() *PackageRegistry {
	r := New[PackageEntry]()
	add := func(id, name, command string, args []string, output, desc string, enabled bool, platforms ...string) {
		r.Add(id, PackageEntry{
			Name:        name,
			Command:     command,
			Args:        args,
			OutputFile:  output,
			Enabled:     enabled,
			Description: Ptr(desc),
			Platforms:   platforms,
		})
	}
	add("brew", "Homebrew Packages", "brew", []string{"leaves"}, "brew.txt",
		"Homebrew installed packages (leaves only)", true, PlatformMacOS, PlatformLinux)
	add("brew_cask", "Homebrew Casks", "brew", []string{"list", "--cask"}, "brew-cask.txt",
		"Homebrew installed casks (applications)", true, PlatformMacOS)
	add("npm", "npm Global Packages", "npm", []string{"ls", "-g"}, "npm.txt",
		"npm globally installed packages", true)
	add("yarn", "Yarn Global Packages", "yarn", []string{"global", "list"}, "yarn.txt",
		"Yarn globally installed packages", true)
	add("pnpm", "pnpm Global Packages", "pnpm", []string{"ls", "-g"}, "pnpm.txt",
		"pnpm globally installed packages", true)
	add("bun", "Bun Global Packages", "bun", []string{"pm", "ls", "-g"}, "bun.txt",
		"Bun globally installed packages", true)
	add("cargo", "Cargo Packages", "cargo", []string{"install", "--list"}, "cargo.txt",
		"Cargo installed packages", true)
	add("uv", "uv Packages", "uv", []string{"tool", "list"}, "uv.txt",
		"uv installed tools", true)
	add("pip", "pip Packages", "pip", []string{"list", "--format=freeze"}, "pip.txt",
		"pip installed packages (system-wide)", false)
	return r
}
