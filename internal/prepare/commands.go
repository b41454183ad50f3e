package prepare

import "github.com/nodeforge/nodeforge/internal/types"

// stepCommands maps each post-detection step to the shell commands that
// implement it for one OS family. Commands are expected to be safely
// re-runnable; the engine imposes no deduplication beyond one attempt
// in flight per server.
type stepCommands map[types.PreparationStep][]string

var aptCommands = func(repoOS string) stepCommands {
	return stepCommands{
		types.StepUpdatePackages: {
			"sudo apt-get update -y",
			"sudo apt-get upgrade -y",
		},
		types.StepInstallDependencies: {
			"sudo apt-get install -y ca-certificates curl gnupg lsb-release",
		},
		types.StepInstallDocker: {
			"sudo install -m 0755 -d /etc/apt/keyrings",
			"curl -fsSL https://download.docker.com/linux/" + repoOS + "/gpg | sudo gpg --dearmor --yes -o /etc/apt/keyrings/docker.gpg",
			`echo "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.gpg] https://download.docker.com/linux/` + repoOS + ` $(. /etc/os-release && echo $VERSION_CODENAME) stable" | sudo tee /etc/apt/sources.list.d/docker.list`,
			"sudo apt-get update -y",
			"sudo apt-get install -y docker-ce docker-ce-cli containerd.io docker-compose-plugin",
		},
		types.StepStartDocker: {
			"sudo systemctl enable docker",
			"sudo systemctl start docker",
		},
		types.StepConfigureUser: {
			"sudo usermod -aG docker $USER",
		},
		types.StepVerifyDocker: {
			"sudo systemctl is-active docker",
			"sudo docker version --format '{{.Server.Version}}'",
		},
	}
}

var dnfCommands = func(repoOS string) stepCommands {
	return stepCommands{
		types.StepUpdatePackages: {
			"sudo dnf -y upgrade --refresh",
		},
		types.StepInstallDependencies: {
			"sudo dnf -y install dnf-plugins-core curl",
		},
		types.StepInstallDocker: {
			"sudo dnf config-manager --add-repo https://download.docker.com/linux/" + repoOS + "/docker-ce.repo",
			"sudo dnf -y install docker-ce docker-ce-cli containerd.io docker-compose-plugin",
		},
		types.StepStartDocker: {
			"sudo systemctl enable docker",
			"sudo systemctl start docker",
		},
		types.StepConfigureUser: {
			"sudo usermod -aG docker $USER",
		},
		types.StepVerifyDocker: {
			"sudo systemctl is-active docker",
			"sudo docker version --format '{{.Server.Version}}'",
		},
	}
}

// commandTables keys the family-specific tables. FamilyUnknown has no
// entry; the engine fails the run when the lookup misses.
var commandTables = map[types.OSFamily]stepCommands{
	types.FamilyUbuntu: aptCommands("ubuntu"),
	types.FamilyDebian: aptCommands("debian"),
	types.FamilyRHEL:   dnfCommands("centos"),
	types.FamilyFedora: dnfCommands("fedora"),
}

// CommandsFor resolves the commands for a step on the given family.
// The second return is false when no table exists for the family or
// the step has no commands (detect_os is handled separately).
func CommandsFor(family types.OSFamily, step types.PreparationStep) ([]string, bool) {
	table, ok := commandTables[family]
	if !ok {
		return nil, false
	}
	commands, ok := table[step]
	return commands, ok
}
