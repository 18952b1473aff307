package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := InvalidCredentials("wrong password")
	assert.True(t, Is(err, ErrInvalidCredentials))
	assert.False(t, Is(err, ErrOtpRequired))

	wrapped := fmt.Errorf("login: %w", OtpRequired())
	assert.True(t, Is(wrapped, ErrOtpRequired))
	assert.Equal(t, KindOtpRequired, KindOf(wrapped))
}

func TestFamilies(t *testing.T) {
	assert.True(t, IsAuth(GateClosed()))
	assert.True(t, IsAuth(GameNotInstalled("/games")))
	assert.True(t, IsAuth(UnknownBackend("lodestone")))
	assert.True(t, Is(UnknownBackend("lodestone"), ErrUnknownBackend))
	assert.Equal(t, FamilyAuth, KindUnknownBackend.Family())
	assert.Equal(t, FamilyProvisioning, KindProvisionTransport.Family())
	assert.True(t, IsProvisioning(DownloadFailed("runtime", io.EOF)))
	assert.True(t, IsProvisioning(PartialDownload("assets", nil)))
	assert.True(t, IsLaunch(Busy("Main")))
	assert.True(t, IsLaunch(MissingWrapper("gamescope", "gamescope", nil)))

	assert.False(t, IsAuth(io.EOF))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
	assert.Equal(t, FamilyNone, KindUnknown.Family())
}

func TestErrorText(t *testing.T) {
	err := DownloadFailed("dalamud", io.ErrUnexpectedEOF)
	assert.Equal(t, "dalamud: download failed: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.Equal(t, "one-time password required", New(KindOtpRequired, "", nil).Error())
	assert.Equal(t, "assets: missing files after install: a.png and others",
		PartialDownload("assets", []string{"a.png", "b.png"}).Error())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestAs(t *testing.T) {
	var e *Error
	assert.True(t, As(fmt.Errorf("wrap: %w", UnpackFailed("runtime", io.EOF)), &e))
	assert.Equal(t, "runtime", e.Component)
	assert.Equal(t, KindUnpack, e.Kind)
}
