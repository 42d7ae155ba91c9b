package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/rs/cors"

	"partyhub/chat"
	"partyhub/config"
	"partyhub/groups"
	"partyhub/identity"
	"partyhub/middleware"
	"partyhub/party"
	"partyhub/pkg/db/sqlite"
	"partyhub/presence"
	"partyhub/util"
	"partyhub/util/api"
)

func main() {
	log.Println("Initializing application...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Using database at: %s", cfg.DatabasePath)

	db, err := sqlite.ConnectAndMigrate(cfg.DatabasePath, cfg.MigrationsPath)
	if err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	defer db.Close()

	sessions := util.NewSessions()
	registry := presence.NewRegistry()
	users := identity.NewResolver(db)
	groupStore := groups.NewStore(db)
	partyStore := party.NewStore(db, users, groupStore)
	messageStore := chat.NewStore(db)
	router := chat.NewRouter(messageStore, groupStore, users, registry)

	authHandler := &api.AuthHandler{DB: db, Sessions: sessions}
	partyHandler := &api.PartyHandler{Parties: partyStore, Users: users}
	messageHandler := &api.MessageHandler{Router: router, Users: users}
	wsHandler := &api.WSHandler{Router: router, Presence: registry, Sessions: sessions, Users: users}

	authed := middleware.Auth(sessions)

	mux := http.NewServeMux()
	mux.Handle("/ws", authed(http.HandlerFunc(wsHandler.Handle)))

	// Auth handlers
	mux.HandleFunc("POST /register", authHandler.Register)
	mux.HandleFunc("POST /login", authHandler.Login)
	mux.HandleFunc("POST /logout", authHandler.Logout)

	// Party handlers
	mux.HandleFunc("POST /createParty", partyHandler.CreateParty)
	mux.HandleFunc("GET /active-parties", partyHandler.ListActiveParties)
	mux.HandleFunc("GET /user-parties/{username}", partyHandler.ListUserParties)
	mux.HandleFunc("GET /hosted-parties/{username}", partyHandler.ListHostedParties)
	mux.HandleFunc("GET /party/{partyID}", partyHandler.GetParty)
	mux.HandleFunc("POST /party/{partyID}/join", partyHandler.JoinParty)
	mux.HandleFunc("POST /party/{partyID}/leave", partyHandler.LeaveParty)
	mux.HandleFunc("POST /party/{partyID}/requirement", partyHandler.AddRequirement)
	mux.HandleFunc("POST /party/{partyID}/requirement/{requirementID}/fulfill", partyHandler.FulfillRequirement)
	mux.HandleFunc("POST /party/{partyID}/cancel", partyHandler.CancelParty)
	mux.HandleFunc("PUT /party/{partyID}", partyHandler.EditParty)
	mux.HandleFunc("POST /party/{partyID}/invite", partyHandler.InviteFriends)

	// Direct message history
	mux.HandleFunc("GET /messages/{username1}/{username2}", messageHandler.GetHistory)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true, // Required for cookies!
	})

	handler := c.Handler(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	fmt.Printf("Server running on %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
