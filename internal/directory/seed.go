package directory

import "github.com/Tyrowin/messenger/internal/entities"

// DefaultUsers is the fixed user set the server starts with.
func DefaultUsers() []entities.User {
	return []entities.User{
		{ID: "U1", Name: "Dev Developerson", Status: entities.StatusOnline},
		{ID: "U2", Name: "Ada Lovelace", Status: entities.StatusOnline},
		{ID: "U3", Name: "Grace Hopper", Status: entities.StatusAway},
		{ID: "U4", Name: "Ken Thompson", Status: entities.StatusOffline},
		{ID: "U5", Name: "Barbara Liskov", Status: entities.StatusOnline},
	}
}

// DefaultChannels is the set of channels created through the regular create
// operation right after startup.
func DefaultChannels() []entities.Channel {
	return []entities.Channel{
		{ID: "C1", Name: "General", Participants: []string{"U1", "U2", "U3", "U4", "U5"}},
		{ID: "C2", Name: "Compilers", Participants: []string{"U1", "U3", "U4"}},
		{ID: "C3", Name: "Type Systems", Participants: []string{"U2", "U5"}},
	}
}
