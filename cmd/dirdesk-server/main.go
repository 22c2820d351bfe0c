package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/dirdesk/pkg/dirdesk/auth"
	"github.com/mikepea/dirdesk/pkg/dirdesk/connect"
	"github.com/mikepea/dirdesk/pkg/dirdesk/database"
	"github.com/mikepea/dirdesk/pkg/dirdesk/departments"
	"github.com/mikepea/dirdesk/pkg/dirdesk/dirsync"
	"github.com/mikepea/dirdesk/pkg/dirdesk/graph"
	"github.com/mikepea/dirdesk/pkg/dirdesk/models"
	"github.com/mikepea/dirdesk/pkg/dirdesk/positions"
	"github.com/mikepea/dirdesk/pkg/dirdesk/sites"
	"github.com/mikepea/dirdesk/pkg/dirdesk/tokens"
	"github.com/mikepea/dirdesk/pkg/dirdesk/users"
	"github.com/mikepea/dirdesk/pkg/dirdesk/workspace"
)

func main() {
	// Get database path from environment or use default
	dbPath := os.Getenv("DIRDESK_DB_PATH")
	if dbPath == "" {
		dbPath = "dirdesk.db"
	}

	// Connect to database
	if err := database.Connect(dbPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Create default admin user if no admin exists
	if err := ensureAdminExists(); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	// Get base URL from environment or use default
	baseURL := os.Getenv("DIRDESK_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	db := database.GetDB()

	// Token lifecycle manager, directory client and sync engine share one
	// wiring: the manager supplies access tokens to the client, the engine
	// drives the client against the local store.
	tokenManager := tokens.NewManager(
		db,
		connect.TokenURL(),
		os.Getenv("MSGRAPH_CLIENT_ID"),
		os.Getenv("MSGRAPH_CLIENT_SECRET"),
	)
	graphClient := graph.NewClient(tokenManager)
	syncEngine := dirsync.NewEngine(db, graphClient, connect.TenantID())

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "dirdesk",
			})
		})

		// Auth routes (public login, protected me/logout)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		authRequired := auth.AuthMiddleware(db)

		// Provider connect routes (callback is public, rest auth'd inside)
		connectHandler := connect.NewHandler(db, tokenManager, baseURL)
		connectHandler.RegisterRoutes(api.Group("/connect"))

		// Token status routes (protected)
		tokensHandler := tokens.NewHandler(tokenManager)
		tokensHandler.RegisterRoutes(api.Group("", authRequired))

		// Directory CRUD routes (read for any authenticated user)
		protected := api.Group("", authRequired)
		usersHandler := users.NewHandler(db)
		usersHandler.RegisterRoutes(protected)

		departmentsHandler := departments.NewHandler(db)
		departmentsHandler.RegisterRoutes(protected)
		departmentsHandler.RegisterMemberRoutes(protected)

		positionsHandler := positions.NewHandler(db)
		positionsHandler.RegisterRoutes(protected)

		sitesHandler := sites.NewHandler(db)
		sitesHandler.RegisterRoutes(protected)

		// Workspace routes (protected, backed by the connected account)
		workspaceHandler := workspace.NewHandler(graphClient)
		workspaceHandler.RegisterRoutes(protected)

		// Admin routes (JWT only, admin role required)
		adminGroup := api.Group("/admin")
		adminGroup.Use(authRequired, auth.RequireAdmin())

		usersHandler.RegisterAdminRoutes(adminGroup)
		departmentsHandler.RegisterAdminRoutes(adminGroup)
		departmentsHandler.RegisterAdminMemberRoutes(adminGroup)
		positionsHandler.RegisterAdminRoutes(adminGroup)
		sitesHandler.RegisterAdminRoutes(adminGroup)
		tokensHandler.RegisterAdminRoutes(adminGroup)

		// Sync routes (admin only)
		syncHandler := dirsync.NewHandler(syncEngine)
		syncHandler.RegisterRoutes(adminGroup)
	}

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting dirdesk server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureAdminExists creates a default admin user if no admin exists in the
// database.
func ensureAdminExists() error {
	db := database.GetDB()

	// Check if any admin user exists
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil // Admin already exists
	}

	// Create default admin user
	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@dirdesk.local",
		Name:         "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: admin@dirdesk.local (password: changeme)")
	return nil
}
