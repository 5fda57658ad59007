package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_EnsureMember_Synthesizes_Owner(t *testing.T) {
	req := require.New(t)
	c := &Channel{Owner: "owner", Type: ChannelPrivate, Users: []Member{
		{User: "alice"},
	}}

	m := c.EnsureMember("owner")
	req.NotNil(m)
	req.True(m.IsAdmin)
	req.Len(c.Users, 2)

	// Second call reuses the synthesized record.
	req.True(c.Saw("owner"))
	req.Len(c.Users, 2)
	req.NotNil(c.Users[1].LastSeen)
}

func Test_EnsureMember_Unknown_User(t *testing.T) {
	req := require.New(t)
	c := &Channel{Owner: "owner", Type: ChannelPrivate}

	req.Nil(c.EnsureMember("stranger"))
	req.Nil(c.EnsureMember(""))
	req.False(c.Saw("stranger"))
	req.False(c.MuteFor(""))
	req.Empty(c.Users)
}

func Test_MuteFor_Sets_Flag(t *testing.T) {
	req := require.New(t)
	c := &Channel{Owner: "owner", Users: []Member{{User: "alice"}}}

	req.True(c.MuteFor("alice"))
	req.True(c.Users[0].Mute)
}

func Test_Invite_Upserts(t *testing.T) {
	req := require.New(t)
	c := &Channel{Owner: "owner", Users: []Member{{User: "alice"}}}

	c.Invite([]InviteEntry{
		{User: "alice", IsAdmin: true},
		{User: "bob"},
		{User: ""},
	})

	req.Len(c.Users, 2)
	req.True(c.Users[0].IsAdmin)
	req.Equal("bob", c.Users[1].User)
}

func Test_Leave(t *testing.T) {
	req := require.New(t)
	c := &Channel{Owner: "owner", Users: []Member{{User: "alice"}, {User: "bob"}}}

	req.False(c.Leave("owner"))
	req.False(c.Leave(""))
	req.True(c.Leave("alice"))
	req.Len(c.Users, 1)
	req.Equal("bob", c.Users[0].User)
}

func Test_DedupUsers_Keeps_First(t *testing.T) {
	req := require.New(t)
	c := &Channel{Owner: "owner", Users: []Member{
		{User: "alice", IsAdmin: true},
		{User: "bob"},
		{User: "alice"},
	}}

	c.DedupUsers()

	req.Len(c.Users, 2)
	req.True(c.Users[0].IsAdmin)
}

func Test_CanAccess(t *testing.T) {
	req := require.New(t)

	pub := &Channel{Owner: "owner", Type: ChannelPublic}
	req.True(pub.CanAccess(""))
	req.True(pub.CanAccess("anyone"))

	internal := &Channel{Owner: "owner", Type: ChannelInternal}
	req.False(internal.CanAccess(""))
	req.True(internal.CanAccess("anyone"))

	private := &Channel{Owner: "owner", Type: ChannelPrivate, Users: []Member{{User: "alice"}}}
	req.False(private.CanAccess(""))
	req.False(private.CanAccess("stranger"))
	req.True(private.CanAccess("alice"))
	req.True(private.CanAccess("owner"))
}

func Test_IsAdmin_And_IsOwner(t *testing.T) {
	req := require.New(t)
	c := &Channel{Owner: "owner", Users: []Member{
		{User: "alice", IsAdmin: true},
		{User: "bob"},
	}}

	req.True(c.IsAdmin("owner"))
	req.True(c.IsAdmin("alice"))
	req.False(c.IsAdmin("bob"))
	req.False(c.IsAdmin(""))

	req.True(c.IsOwner("owner"))
	req.False(c.IsOwner("alice"))
	req.False(c.IsOwner(""))
}
