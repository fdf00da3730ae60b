package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoomKind(t *testing.T) {
	tests := []struct {
		in   string
		want RoomKind
		ok   bool
	}{
		{"school", RoomKindSchool, true},
		{"School-Wide", RoomKindSchool, true},
		{"public-group", RoomKindPublic, true},
		{" secret ", RoomKindSecret, true},
		{"secret_group", RoomKindSecret, true},
		{"private", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRoomKind(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRoomKindValid(t *testing.T) {
	assert.True(t, RoomKindSchool.Valid())
	assert.True(t, RoomKindSecret.Valid())
	assert.False(t, RoomKind("school-wide").Valid())
	assert.True(t, RoomKindSchool.ImplicitMembership())
	assert.False(t, RoomKindPublic.ImplicitMembership())
}

func TestMemberIDs(t *testing.T) {
	room := ChatRoom{Members: []RoomMember{{UserID: "a"}, {UserID: "b"}}}
	assert.Equal(t, []string{"a", "b"}, room.MemberIDs())
}
