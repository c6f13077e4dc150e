package commissioner

// TMF URI paths. The literal strings for the dataset/keep-alive/petition/
// diagnostics/MLR/PAN-ID-query/energy-scan resources are taken verbatim from
// the external interface table; the remainder (dataset-changed and PAN-ID
// conflict notifications, announce, re-enroll, domain-reset, migrate) are
// not named there, so these follow the same two/three-letter mnemonic
// scheme and are supplemented here (see DESIGN.md).
const (
	petitionPath        = "/c/cp"
	keepAlivePath       = "/c/ca"
	commissionerGetPath = "/c/mg"
	commissionerSetPath = "/c/ms"
	activeGetPath       = "/c/ag"
	activeSetPath       = "/c/as"
	pendingGetPath      = "/c/pg"
	pendingSetPath      = "/c/ps"
	bbrGetPath          = "/c/bg"
	bbrSetPath          = "/c/bs"

	diagQueryPath  = "/d/dq"
	diagResetPath  = "/d/dr"
	diagAnswerPath = "/d/da"

	mlrPath = "/a/mlr"

	panIdQueryPath = "/c/mpq"
	edScanPath     = "/c/meds"
	edReportPath   = "/c/mer"

	panIdConflictPath  = "/c/mpc"
	datasetChangedPath = "/c/dc"
	announceBeginPath  = "/c/ab"
	reenrollPath       = "/c/rr"
	domainResetPath    = "/c/dor"
	netMigratePath     = "/c/mig"
)
