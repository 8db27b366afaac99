package valueobjects

type BootstrapStage string

const (
	BootstrapStageNone         BootstrapStage = "none"
	BootstrapStageConnectivity BootstrapStage = "connectivity"
	BootstrapStageSchemaEnsure BootstrapStage = "schema_ensure"
	BootstrapStageMigration    BootstrapStage = "migration"
	BootstrapStageVerification BootstrapStage = "verification"
)

// BootstrapStages returns the stages in execution order.
func BootstrapStages() []BootstrapStage {
	return []BootstrapStage{
		BootstrapStageConnectivity,
		BootstrapStageSchemaEnsure,
		BootstrapStageMigration,
		BootstrapStageVerification,
	}
}

func (s BootstrapStage) String() string {
	return string(s)
}

func (s BootstrapStage) IsNone() bool {
	return s == "" || s == BootstrapStageNone
}
