package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/praxislearn/assess-backend/internal/config"
	"github.com/praxislearn/assess-backend/internal/database"
	"github.com/praxislearn/assess-backend/internal/logger"
	"github.com/praxislearn/assess-backend/internal/model"
	"github.com/praxislearn/assess-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// Seeds one learner and one timed demo paper so a fresh environment can run
// the full attempt flow end to end.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	learnerRepo := repository.NewLearnerRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Seed Demo Learner & Paper ===")

	fmt.Print("Enter Learner Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Learner Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	learner := &model.Learner{Name: name, Email: email, PasswordHash: string(hash)}
	if err := learnerRepo.Create(ctx, learner); err != nil {
		log.Fatal().Err(err).Msg("Failed to create learner")
	}
	fmt.Printf("Learner created with ID %d\n", learner.ID)

	// ─── Demo Paper ────────────────────────────────────────────────────
	paperID := uuid.New()
	timeLimit := 1800 // 30 minutes

	_, err = pool.Exec(ctx,
		`INSERT INTO papers (id, title, time_limit_seconds) VALUES ($1, $2, $3)`,
		paperID, "Demo Paper: General Knowledge", timeLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create paper")
	}

	type demoQuestion struct {
		text    string
		options map[string]string
		correct string
	}
	questions := []demoQuestion{
		{
			text:    "Which planet is closest to the Sun?",
			options: map[string]string{"A": "Venus", "B": "Mercury", "C": "Mars", "D": "Earth"},
			correct: "B",
		},
		{
			text:    "What is 12 × 12?",
			options: map[string]string{"A": "124", "B": "142", "C": "144", "D": "148"},
			correct: "C",
		},
		{
			text:    "Which gas do plants absorb during photosynthesis?",
			options: map[string]string{"A": "Carbon dioxide", "B": "Oxygen", "C": "Nitrogen", "D": "Hydrogen"},
			correct: "A",
		},
	}

	for i, q := range questions {
		opts, _ := json.Marshal(q.options)
		_, err := pool.Exec(ctx,
			`INSERT INTO questions (id, paper_id, question_text, options, correct_option, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), paperID, q.text, opts, q.correct, i)
		if err != nil {
			log.Fatal().Err(err).Int("order", i).Msg("Failed to insert question")
		}
	}

	fmt.Printf("Paper created: %s (%d questions, %d second limit)\n",
		paperID, len(questions), timeLimit)
}
