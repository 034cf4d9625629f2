package mdns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnounceDiscover(t *testing.T) {
	announcement, err := Announce("test-server", "_ota-test._tcp", 8080, []string{"version=1.6"})
	if err != nil {
		t.Skip("multicast not available")
	}
	defer announcement.Stop()

	locations, err := Discover("_ota-test._tcp", 2*time.Second)
	require.NoError(t, err)
	if len(locations) == 0 {
		t.Skip("multicast not available")
	}

	assert.Equal(t, "test-server", locations[0].Instance)
	assert.Equal(t, 8080, locations[0].Port)
	assert.Equal(t, []string{"version=1.6"}, locations[0].Text)
}
