package handlers

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/postly/postly/internal/appid"
)

type buildInfo struct {
	mu        sync.RWMutex
	version   string
	commit    string
	buildDate string
	identity  *appidentity.Identity
}

var build = &buildInfo{version: "dev", commit: "unknown", buildDate: "unknown"}

// SetVersionInfo records the linker-injected build metadata served by /version.
func SetVersionInfo(version, commit, buildDate string) {
	build.mu.Lock()
	defer build.mu.Unlock()
	build.version, build.commit, build.buildDate = version, commit, buildDate
}

// SetAppIdentity sets the identity whose binary name /version reports.
// Nil restores the built-in identity.
func SetAppIdentity(identity *appidentity.Identity) {
	build.mu.Lock()
	defer build.mu.Unlock()
	build.identity = identity
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform string `json:"platform"`
	NumCPU   int    `json:"num_cpu"`
}

func (b *buildInfo) response() VersionResponse {
	b.mu.RLock()
	defer b.mu.RUnlock()

	identity := b.identity
	if identity == nil {
		identity = appid.Default()
	}
	deps := crucible.GetVersion()
	return VersionResponse{
		App: AppInfo{
			Name:      identity.BinaryName,
			Version:   b.version,
			Commit:    b.commit,
			BuildDate: b.buildDate,
			GoVersion: runtime.Version(),
		},
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			Platform: runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:   runtime.NumCPU(),
		},
	}
}

// VersionHandler serves GET /version.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, build.response())
}
