package rbac

type Role string
type Action string

const (
	RoleViewer    Role = "viewer"
	RoleAssistant Role = "assistant"
	RoleLawyer    Role = "lawyer"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleLawyer:
		return action == ActionRead || action == ActionWrite || action == ActionDelete
	case RoleAssistant:
		return action == ActionRead || action == ActionWrite
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleAssistant, RoleLawyer, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
