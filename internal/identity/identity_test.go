package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
)

func TestNormalizeDeviceType(t *testing.T) {
	tests := []struct {
		raw  string
		want identity.DeviceType
	}{
		{"1", identity.DeviceTypePhone},
		{"PHONE", identity.DeviceTypePhone},
		{"phone", identity.DeviceTypePhone},
		{"2", identity.DeviceTypeTablet},
		{"tablet", identity.DeviceTypeTablet},
		{"3", identity.DeviceTypeDesktop},
		{"DESKTOP", identity.DeviceTypeDesktop},
		{"4", identity.DeviceTypeTV},
		{"TV", identity.DeviceTypeTV},
		{" tv ", identity.DeviceTypeTV},
		{"", identity.DeviceTypeUnknown},
		{"5", identity.DeviceTypeUnknown},
		{"watch", identity.DeviceTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, identity.NormalizeDeviceType(tt.raw))
		})
	}
}

func TestDeviceName(t *testing.T) {
	tests := []struct {
		name string
		id   identity.Identity
		want string
	}{
		{"brand and model", identity.Identity{Brand: "ubuntu", ModelName: "kiosk-7"}, "ubuntu kiosk-7"},
		{"model only", identity.Identity{ModelName: "kiosk-7"}, "kiosk-7"},
		{"brand only", identity.Identity{Brand: "ubuntu"}, "ubuntu"},
		{"empty", identity.Identity{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.DeviceName())
		})
	}
}

func TestFormatMemory(t *testing.T) {
	assert.Equal(t, "", identity.FormatMemory(0))
	assert.Equal(t, "17179869184", identity.FormatMemory(17179869184))
}
