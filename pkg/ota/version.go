package ota

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/256dpi/ota/pkg/utils"
)

// maxTokenSize limits the amount of data read from the version endpoint.
const maxTokenSize = 256

// VersionOracle fetches the latest version token from a fixed endpoint.
type VersionOracle struct {
	URL    string
	Client *http.Client
	Out    io.Writer
}

// NewVersionOracle creates a new oracle for the specified URL. If out is not
// nil, it will be used to report failures.
func NewVersionOracle(url string, out io.Writer) *VersionOracle {
	return &VersionOracle{
		URL:    url,
		Client: http.DefaultClient,
		Out:    out,
	}
}

// Fetch returns the trimmed version token or an empty string if the token
// could not be fetched or the response exceeds the token size limit.
func (o *VersionOracle) Fetch(ctx context.Context) string {
	// prepare request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.URL, nil)
	if err != nil {
		utils.Logf(o.Out, "Failed to fetch version: %s", err)
		return ""
	}

	// get client
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	// perform request
	res, err := client.Do(req)
	if err != nil {
		utils.Logf(o.Out, "Failed to fetch version: %s", err)
		return ""
	}
	defer res.Body.Close()

	// check status
	if res.StatusCode != http.StatusOK {
		utils.Logf(o.Out, "Failed to fetch version. HTTP code: %d", res.StatusCode)
		return ""
	}

	// read token
	data, err := io.ReadAll(io.LimitReader(res.Body, maxTokenSize+1))
	if err != nil {
		utils.Logf(o.Out, "Failed to read version: %s", err)
		return ""
	}

	// check size
	if len(data) > maxTokenSize {
		utils.Logf(o.Out, "Failed to read version: more than %d bytes", maxTokenSize)
		return ""
	}

	return strings.TrimSpace(string(data))
}
