package models

import "fmt"

// Entity names one of the four per-user resources both origins serve.
type Entity string

const (
	EntityUser            Entity = "user"
	EntityActivity        Entity = "activity"
	EntityAverageSessions Entity = "average-sessions"
	EntityPerformance     Entity = "performance"
)

var Entities = []Entity{EntityUser, EntityActivity, EntityAverageSessions, EntityPerformance}

// Path is the remote route of the entity for user id.
func (e Entity) Path(id int) string {
	if e == EntityUser {
		return fmt.Sprintf("/user/%d", id)
	}
	return fmt.Sprintf("/user/%d/%s", id, e)
}
