package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInstanceKey(t *testing.T) {
	assert.Equal(t, "/services/video-assembly-service/node-1", InstanceKey("video-assembly-service", "node-1"))
}

func TestLeaseSeconds(t *testing.T) {
	assert.Equal(t, int64(30), leaseSeconds(30*time.Second))
	assert.Equal(t, int64(5), leaseSeconds(time.Second))
	assert.Equal(t, int64(5), leaseSeconds(0))
}
