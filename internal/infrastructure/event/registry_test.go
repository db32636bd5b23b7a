package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	a := &recordingHandler{}
	b := &recordingHandler{}

	r.Register(a, "posted", "unposted")
	r.Register(a, "posted")
	r.Register(b)

	assert.Len(t, r.Handlers("posted"), 2, "duplicate registration is ignored")
	assert.Same(t, a, r.Handlers("posted")[0])
	assert.Same(t, b, r.Handlers("posted")[1])
	assert.Len(t, r.Handlers("other"), 1)
	assert.Len(t, r.Handlers("unposted"), 2)
}
