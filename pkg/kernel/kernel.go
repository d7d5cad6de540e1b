// Package kernel holds the shared typed identifiers used by every module.
package kernel

// UserID es el identificador opaco del dueño de los datos.
// El orquestador lo provee; este servicio nunca lo interpreta.
type UserID string

func NewUserID(s string) UserID { return UserID(s) }

func (id UserID) String() string { return string(id) }
func (id UserID) IsZero() bool   { return id == "" }

// SessionID identifica una conversación dentro de un usuario
type SessionID string

func NewSessionID(s string) SessionID { return SessionID(s) }

func (id SessionID) String() string { return string(id) }
func (id SessionID) IsZero() bool   { return id == "" }

// MemoryID identifica un registro de memoria extendida
type MemoryID string

func NewMemoryID(s string) MemoryID { return MemoryID(s) }

func (id MemoryID) String() string { return string(id) }
func (id MemoryID) IsZero() bool   { return id == "" }

// AuthContext es el contexto autenticado que el middleware inyecta en cada request
type AuthContext struct {
	UserID UserID
	Email  string
	Scopes []string
}

// HasScope verifica si el contexto tiene un scope específico
func (a *AuthContext) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}
