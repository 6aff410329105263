package handler

import (
	"omokhub/internal/app/room"
	"omokhub/internal/configs"
)

// AppDeps bundles the dependencies shared by the HTTP handlers.
type AppDeps struct {
	Manager *room.Manager
	Config  *configs.AppConfig
}
