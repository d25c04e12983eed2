package backend

// Config keys used in the repository's local config file (.git/config)
const (
	// CfgCore is the name of the [core] section
	CfgCore = "core"

	// CfgCoreFormatVersion is the repositoryformatversion key
	CfgCoreFormatVersion = "repositoryformatversion"
	// CfgCoreFileMode is the filemode key
	CfgCoreFileMode = "filemode"
	// CfgCoreBare is the bare key
	CfgCoreBare = "bare"
	// CfgCoreLogAllRefUpdate is the logallrefupdates key
	CfgCoreLogAllRefUpdate = "logallrefupdates"
	// CfgCoreIgnoreCase is the ignorecase key
	CfgCoreIgnoreCase = "ignorecase"
	// CfgCorePrecomposeUnicode is the precomposeunicode key
	CfgCorePrecomposeUnicode = "precomposeunicode"
	// CfgCoreWorktree is the worktree key
	CfgCoreWorktree = "worktree"
)
