// Command admin manages the dashboard out of band: creating accounts
// and seeding a demo environment. It talks to the database directly and
// never goes through the HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/config"
	"github.com/projectmaat/projectmaat/internal/db"
	"github.com/projectmaat/projectmaat/internal/reflection"
	"github.com/projectmaat/projectmaat/internal/roster"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg := config.FromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Error("db open failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer dbh.Close()

	switch cmd {
	case "adduser":
		err = runAddUser(ctx, dbh, args)
	case "seed":
		err = runSeed(ctx, dbh, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+" failed", "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

commands:
  adduser   create an account (--username, --password, --role, --name)
  seed      fill the database with a demo course, teams and an assessment`)
}

func runAddUser(ctx context.Context, dbh *sql.DB, args []string) error {
	fs := pflag.NewFlagSet("adduser", pflag.ExitOnError)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "initial password")
	role := fs.String("role", "teacher", "teacher, student or admin")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" || *password == "" {
		return errors.New("--username and --password are required")
	}
	switch *role {
	case "teacher", "student", "admin":
	default:
		return fmt.Errorf("unknown role %q", *role)
	}

	id, err := insertUser(ctx, dbh, uuid.NewString(), *username, *password, *role, *name)
	if err != nil {
		return err
	}
	slog.Info("user created", "id", id, "username", *username, "role", *role)
	return nil
}

func insertUser(ctx context.Context, dbh *sql.DB, id, username, password, role, name string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id,username,password_hash,role,display_name,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		id, username, string(hash), role, name, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("insert user %s: %w", username, err)
	}
	return id, nil
}

// runSeed builds a small but complete demo environment: two accounts, a
// course with eight students in two teams, a published-ready assessment
// with a few scores, and the competency catalogue. The student account
// reuses the roster id of the first student, so reflections and scans
// land on a name the teacher recognizes.
func runSeed(ctx context.Context, dbh *sql.DB, args []string) error {
	fs := pflag.NewFlagSet("seed", pflag.ExitOnError)
	teacherPass := fs.String("teacher-password", "wachtwoord123", "password for the demo teacher")
	studentPass := fs.String("student-password", "wachtwoord123", "password for the demo student")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rosterStore := roster.NewSQLStore(dbh)
	assessStore := assessment.NewSQLStore(dbh)
	reflStore := reflection.NewSQLStore(dbh)

	teacherID, err := insertUser(ctx, dbh, uuid.NewString(), "docent", *teacherPass, "teacher", "M. Jansen")
	if err != nil {
		return err
	}

	course, err := rosterStore.CreateCourse(ctx, roster.Course{
		Name: "3HV2", Period: "Periode 2", CreatedBy: teacherID,
	})
	if err != nil {
		return err
	}

	names := []string{
		"Anna Berg", "Bas Dekker", "Carla Smit", "Daan de Wit",
		"Eva Mulder", "Finn Visser", "Gina Bakker", "Hugo Peters",
	}
	sts := make([]roster.Student, len(names))
	for i, n := range names {
		sts[i] = roster.Student{Number: fmt.Sprintf("%d", 1001+i), FullName: n}
	}
	if _, err := rosterStore.ImportStudents(ctx, course.ID, sts); err != nil {
		return err
	}
	enrolled, err := rosterStore.ListStudents(ctx, course.ID)
	if err != nil {
		return err
	}

	// the demo student logs in as the first roster entry
	if _, err := insertUser(ctx, dbh, enrolled[0].ID, "leerling", *studentPass, "student", enrolled[0].FullName); err != nil {
		return err
	}

	teamNames := []string{"De Uitvinders", "Moonshot"}
	for i, tn := range teamNames {
		team, err := rosterStore.CreateTeam(ctx, roster.Team{
			CourseID: course.ID, Name: tn, TeamNumber: i + 1,
		})
		if err != nil {
			return err
		}
		ids := []string{}
		for j := i * 4; j < (i+1)*4 && j < len(enrolled); j++ {
			ids = append(ids, enrolled[j].ID)
		}
		if err := rosterStore.SetTeamMembers(ctx, team.ID, ids); err != nil {
			return err
		}
	}

	rubric, err := assessStore.CreateRubric(ctx, assessment.Rubric{
		Name: "Eindproject", ScaleMin: 1, ScaleMax: 10,
		Criteria: []assessment.Criterion{
			{Name: "Onderzoek"},
			{Name: "Samenwerking"},
			{Name: "Presentatie"},
		},
	})
	if err != nil {
		return err
	}
	a, err := assessStore.Create(ctx, assessment.Assessment{
		CourseID:    course.ID,
		Title:       "Eindproject Periode 2",
		RubricID:    rubric.ID,
		GradingMode: assessment.GradingModeTeam,
		CreatedBy:   teacherID,
	})
	if err != nil {
		return err
	}

	seedScores := []assessment.ScoreUpdate{
		{CriterionID: rubric.Criteria[0].ID, TeamNumber: 1, Value: f(8)},
		{CriterionID: rubric.Criteria[1].ID, TeamNumber: 1, Value: f(7), Comment: "Taken goed verdeeld"},
		{CriterionID: rubric.Criteria[0].ID, TeamNumber: 2, Value: f(6)},
	}
	if _, err := assessStore.BatchUpsertScores(ctx, a.ID, seedScores, teacherID); err != nil {
		return err
	}

	for i, c := range []string{"Organiseren", "Meedoen", "Zelfvertrouwen", "Autonomie"} {
		if _, err := reflStore.CreateCompetency(ctx, reflection.Competency{Name: c, Position: i + 1}); err != nil {
			return err
		}
	}

	slog.Info("demo data seeded",
		"course", course.Name,
		"assessment", a.ID,
		"teacher_login", "docent",
		"student_login", "leerling",
	)
	return nil
}

func f(v float64) *float64 { return &v }
