package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointKeyIsDeterministic(t *testing.T) {
	a := EndpointKey("https://push.example/abc")
	b := EndpointKey("https://push.example/abc")
	c := EndpointKey("https://push.example/other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestNotificationBroadcast(t *testing.T) {
	n := Notification{ID: "n1"}
	assert.True(t, n.Broadcast())

	n.TargetUserIDs = []int{1}
	assert.False(t, n.Broadcast())
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	assert.NoError(t, err)

	u := User{PasswordHash: hash}
	assert.True(t, u.CheckPassword("hunter2"))
	assert.False(t, u.CheckPassword("hunter3"))
}
