package routes

import (
	"github.com/gin-gonic/gin"

	"filevault/repository"
	"filevault/services"
	"filevault/storage"
)

// ServiceContainer holds every service the route handlers depend on.
type ServiceContainer struct {
	Store     repository.Store
	Blobs     storage.BlobStore
	JWTSecret string

	AuthService     *services.AuthService
	ContentService  *services.ContentService
	UploadService   *services.UploadService
	DownloadService *services.DownloadService
	CopyMoveService *services.CopyMoveService
	ShareService    *services.ShareService
	FileService     *services.FileService
}

// ContainerConfig carries the tuning knobs the services need at build time.
type ContainerConfig struct {
	JWTSecret          string
	JWTExpirationHours int
	KeyDerivationSalt  string
	MaxFileSize        int64
	CopyWorkers        int
}

// NewServiceContainer wires all services over the given store and blob
// backend.
func NewServiceContainer(store repository.Store, blobs storage.BlobStore, cfg ContainerConfig) *ServiceContainer {
	keySalt := []byte(cfg.KeyDerivationSalt)
	contentService := services.NewContentService(store)

	return &ServiceContainer{
		Store:     store,
		Blobs:     blobs,
		JWTSecret: cfg.JWTSecret,

		AuthService:     services.NewAuthService(store, cfg.JWTSecret, cfg.JWTExpirationHours),
		ContentService:  contentService,
		UploadService:   services.NewUploadService(store, blobs, keySalt, cfg.MaxFileSize),
		DownloadService: services.NewDownloadService(store, blobs, keySalt),
		CopyMoveService: services.NewCopyMoveService(store, blobs, contentService, keySalt, cfg.CopyWorkers),
		ShareService:    services.NewShareService(store, contentService),
		FileService:     services.NewFileService(store, blobs, contentService),
	}
}

// SetupRoutes registers every route group on the API router.
func SetupRoutes(api *gin.RouterGroup, container *ServiceContainer) {
	RegisterAuthRoutes(api, container)
	RegisterFileRoutes(api, container)
	RegisterFolderRoutes(api, container)
	RegisterShareRoutes(api, container)
	RegisterSearchRoutes(api, container)
}
