// actor.go defines the acting-user context passed explicitly into every
// audit-emitting code path. There is no ambient "current user" global; handlers
// build an Actor from the authenticated request and hand it down.
package auth

import "github.com/gin-gonic/gin"

// ActorContextKey is the gin.Context key under which the authenticated Actor is
// stored by the auth middleware.
const ActorContextKey = "actor"

// Actor identifies who is performing an action: directory id, current role,
// display name, and the network origin of the request.
type Actor struct {
	ID        int64
	Role      Role
	Name      string
	IPAddress string
}

// ActorFromContext retrieves the authenticated actor placed in the gin context
// by the auth middleware. ok is false on unauthenticated paths.
func ActorFromContext(c *gin.Context) (Actor, bool) {
	v, exists := c.Get(ActorContextKey)
	if !exists {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}
