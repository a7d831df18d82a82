package types

import (
	"time"

	"github.com/google/uuid"
)

// DeviceSession tracks an anonymous browser session and the device
// fingerprint captured when it was first seen. The ownership merge refuses
// to run unless the caller presents the same fingerprint.
type DeviceSession struct {
	SessionID         string     `gorm:"column:session_id;primaryKey" json:"session_id"`
	DeviceFingerprint string     `gorm:"column:device_fingerprint;not null" json:"device_fingerprint"`
	MergedInto        *uuid.UUID `gorm:"column:merged_into;type:uuid" json:"merged_into,omitempty"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (DeviceSession) TableName() string { return "device_sessions" }
