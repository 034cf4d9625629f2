// Package server implements a release host that serves firmware artifacts to
// update agents.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/256dpi/ota/pkg/utils"
)

// ErrNoRelease is returned if no release is available.
var ErrNoRelease = errors.New("no release available")

// ErrInvalidVersion is returned for versions that cannot be used as a path
// element.
var ErrInvalidVersion = errors.New("invalid version")

// Artifact is the file name of the firmware image in a release directory.
const Artifact = "firmware.bin"

var versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// Server serves the releases stored in a directory. The directory contains a
// "version.txt" file naming the latest release and a "releases/<version>"
// directory per release holding the firmware image.
type Server struct {
	dir string
	out io.Writer
}

// NewServer creates a new server for the specified directory. If out is not
// nil, it will be used to log requests.
func NewServer(dir string, out io.Writer) *Server {
	return &Server{
		dir: dir,
		out: out,
	}
}

// Latest returns the latest release. If no version file exists, the last
// release in lexical order is returned.
func (s *Server) Latest() (string, error) {
	// read version file
	data, err := os.ReadFile(filepath.Join(s.dir, "version.txt"))
	if err == nil {
		version := strings.TrimSpace(string(data))
		if version != "" {
			return version, nil
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	// list releases
	releases, err := s.Releases()
	if err != nil {
		return "", err
	} else if len(releases) == 0 {
		return "", ErrNoRelease
	}

	return releases[len(releases)-1], nil
}

// Releases returns all releases that provide an artifact.
func (s *Server) Releases() ([]string, error) {
	// read directory
	entries, err := os.ReadDir(filepath.Join(s.dir, "releases"))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	// filter releases
	releases := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		if !entry.IsDir() || !versionPattern.MatchString(entry.Name()) {
			return "", false
		}
		ok, _ := utils.Exists(s.artifact(entry.Name()))
		return entry.Name(), ok
	})

	// sort releases
	sort.Strings(releases)

	return releases, nil
}

// Publish stores the image as the specified release and makes it the latest.
func (s *Server) Publish(version string, image []byte) error {
	// check version
	if !versionPattern.MatchString(version) {
		return ErrInvalidVersion
	}

	// ensure directory
	err := os.MkdirAll(filepath.Dir(s.artifact(version)), 0755)
	if err != nil {
		return err
	}

	// write artifact
	err = utils.WriteAtomic(s.artifact(version), image)
	if err != nil {
		return err
	}

	// write version
	err = utils.WriteAtomic(filepath.Join(s.dir, "version.txt"), []byte(version+"\n"))
	if err != nil {
		return err
	}

	return nil
}

// RegisterHandlers registers the HTTP handlers on the router.
func (s *Server) RegisterHandlers(r *mux.Router) {
	r.HandleFunc("/version.txt", s.getVersion).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/"+Artifact, s.getLatest).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/releases", s.getReleases).Methods(http.MethodGet)
	r.HandleFunc("/releases/{version}/"+Artifact, s.getArtifact).Methods(http.MethodGet, http.MethodHead)
}

// Handler returns a router with all handlers registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterHandlers(r)
	r.Use(s.logRequests)
	return r
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	// get latest
	version, err := s.Latest()
	if err != nil {
		http.Error(w, err.Error(), statusForErr(err))
		return
	}

	// write version
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, version+"\n")
}

func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	// get latest
	version, err := s.Latest()
	if err != nil {
		http.Error(w, err.Error(), statusForErr(err))
		return
	}

	// redirect to release
	http.Redirect(w, r, fmt.Sprintf("/releases/%s/%s", version, Artifact), http.StatusFound)
}

func (s *Server) getReleases(w http.ResponseWriter, r *http.Request) {
	// list releases
	releases, err := s.Releases()
	if err != nil {
		http.Error(w, err.Error(), statusForErr(err))
		return
	}

	// write list
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, release := range releases {
		_, _ = io.WriteString(w, release+"\n")
	}
}

func (s *Server) getArtifact(w http.ResponseWriter, r *http.Request) {
	// check version
	version := mux.Vars(r)["version"]
	if !versionPattern.MatchString(version) {
		http.Error(w, ErrInvalidVersion.Error(), http.StatusBadRequest)
		return
	}

	// open artifact
	file, err := os.Open(s.artifact(version))
	if err != nil {
		http.Error(w, err.Error(), statusForErr(err))
		return
	}
	defer file.Close()

	// get info
	info, err := file.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// serve content
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, Artifact, info.ModTime(), file)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.Logf(s.out, "%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) artifact(version string) string {
	return filepath.Join(s.dir, "releases", version, Artifact)
}

// statusForErr maps errors to HTTP status codes.
func statusForErr(err error) int {
	switch {
	case errors.Is(err, ErrNoRelease), os.IsNotExist(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
