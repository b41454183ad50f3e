package types

import "time"

// PreparationStatus is the lifecycle state of a preparation run.
type PreparationStatus string

const (
	StatusPending    PreparationStatus = "pending"
	StatusInProgress PreparationStatus = "in_progress"
	StatusCompleted  PreparationStatus = "completed"
	StatusFailed     PreparationStatus = "failed"
)

// PreparationStep identifies one step of the fixed bootstrap sequence.
type PreparationStep string

const (
	StepDetectOS            PreparationStep = "detect_os"
	StepUpdatePackages      PreparationStep = "update_packages"
	StepInstallDependencies PreparationStep = "install_dependencies"
	StepInstallDocker       PreparationStep = "install_docker"
	StepStartDocker         PreparationStep = "start_docker"
	StepConfigureUser       PreparationStep = "configure_user"
	StepVerifyDocker        PreparationStep = "verify_docker"
)

// StepSequence is the total order of preparation steps. No step may be
// skipped or reordered; re-running a failed preparation starts a new
// attempt from StepDetectOS.
var StepSequence = []PreparationStep{
	StepDetectOS,
	StepUpdatePackages,
	StepInstallDependencies,
	StepInstallDocker,
	StepStartDocker,
	StepConfigureUser,
	StepVerifyDocker,
}

// OSFamily is the canonical family a detected OS release string maps to.
type OSFamily string

const (
	FamilyUbuntu  OSFamily = "ubuntu"
	FamilyDebian  OSFamily = "debian"
	FamilyRHEL    OSFamily = "rhel"
	FamilyFedora  OSFamily = "fedora"
	FamilyUnknown OSFamily = "unknown"
)

// ServerPreparation is one attempt to bring a host from bare OS to
// Docker-ready. Owned exclusively by the preparation engine while the
// run is in flight.
type ServerPreparation struct {
	ID           string            `db:"id"`
	ServerID     string            `db:"server_id"`
	Status       PreparationStatus `db:"status"`
	CurrentStep  PreparationStep   `db:"current_step"`
	DetectedOS   OSFamily          `db:"detected_os"`
	StartedAt    time.Time         `db:"started_at"`
	CompletedAt  *time.Time        `db:"completed_at"`
	ErrorMessage string            `db:"error_message"`
}

// PreparationLog is one step attempt. Append-only.
type PreparationLog struct {
	ID            string          `db:"id"`
	ServerID      string          `db:"server_id"`
	PreparationID string          `db:"preparation_id"`
	Step          PreparationStep `db:"step"`
	Status        string          `db:"status"` // "success" or "failed"
	Message       string          `db:"message"`
	Output        string          `db:"output"`
	Error         string          `db:"error"`
	Timestamp     time.Time       `db:"timestamp"`
}

// HostFacts is the result of fact gathering over SSH. Probes that fail
// report "unknown" rather than aborting the gather.
type HostFacts struct {
	OS           string `json:"os"`
	Kernel       string `json:"kernel"`
	Architecture string `json:"architecture"`
	Uptime       string `json:"uptime"`
}
