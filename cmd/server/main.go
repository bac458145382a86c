package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"go-relay/internal/chat"
	"go-relay/internal/db"
	myMiddleware "go-relay/internal/middleware"
	"go-relay/internal/store"
	"go-relay/internal/user"
)

func main() {
	// 1. Config & Flags
	addr := flag.String("addr", ":8080", "http service address")
	flag.Parse()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	// 2. Persistence (Platform Layer). Without DB_DSN the server runs
	// on the in-memory store: guest-only, nothing survives a restart.
	var messageStore store.Store
	var userRepo *user.Repository

	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		database, err := db.NewDatabase(dsn)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		log.Println("Connected to PostgreSQL")

		if err := database.AutoMigrate(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Database schema initialized")

		messageStore = store.NewPostgres(database.Conn)
		userRepo = user.NewRepository(database.Conn)
	} else {
		log.Println("DB_DSN not set; using in-memory store (guest mode)")
		messageStore = store.NewMemory()
	}

	// 3. Redis bridge (optional; single-instance without it)
	var bridge *chat.Bridge
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Connected to Redis")
		bridge = chat.NewBridge(redisClient)
	}

	// 4. Auth collaborator
	userService := user.NewService(userRepo, jwtSecret)
	userHandler := user.NewHandler(userService)

	// 5. Chat core
	hub := chat.NewHub(messageStore, bridge)
	if bridge != nil {
		go bridge.Run(context.Background(), hub)
	}
	chatHandler := chat.NewHandler(hub, userService)

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 6. Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)
	r.Post("/guest", userHandler.Guest)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "index.html")
	})

	// The websocket route binds its own identity so that a bad token
	// yields a reauthenticate event instead of a plain 401.
	r.Get("/ws", chatHandler.ServeWs)

	// Protected routes (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/users/search", userHandler.SearchUsers)
		r.Get("/api/users/online", chatHandler.GetOnlineUsers)
		r.Get("/api/messages", chatHandler.GetHistory)
	})

	log.Printf("Server starting on %s", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatal(err)
	}
}
