package mca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindLongLocatesNamedField(t *testing.T) {
	var payload []byte
	payload = append(payload, 0x04, 0x00, 0x0e)
	payload = append(payload, "InhabitedTime"...)
	payload = append(payload, 0, 0, 0, 0, 0, 0, 0, 0x2a) // 42

	value, found := FindLong(payload, "InhabitedTime")
	assert.True(t, found)
	assert.Equal(t, int64(42), value)
}

func TestFindLongMissingField(t *testing.T) {
	payload := []byte{0x04, 0x00, 0x03, 'F', 'o', 'o', 0, 0, 0, 0, 0, 0, 0, 1}
	_, found := FindLong(payload, "InhabitedTime")
	assert.False(t, found)
}

func TestFindLongIgnoresShorterNamesSharingASuffix(t *testing.T) {
	var payload []byte
	payload = append(payload, 0x04, 0x00, 0x04)
	payload = append(payload, "Time"...)
	payload = append(payload, 0, 0, 0, 0, 0, 0, 0, 7)

	_, found := FindLong(payload, "InhabitedTime")
	assert.False(t, found)
}
