package websocket

type ConnectParams struct {
	Token       string `form:"token" binding:"required"`       // jwt credential (visitor or operator)
	DisplayName string `form:"display_name" binding:"max=100"` // optional display name override for visitors
}
