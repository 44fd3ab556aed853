package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/spf13/cobra"
)

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Manage employees",
}

var employeeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new employee",
	Long: `Add a new employee and print the generated ID.

Examples:
  face-auth employee add --first-name Jan --second-name Novák --position guard`,
	RunE: runEmployeeAdd,
}

var employeeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List employees",
	Long: `List employees ordered by name.

Examples:
  # All employees
  face-auth employee list

  # Diacritics-insensitive name filter
  face-auth employee list --query novak`,
	RunE: runEmployeeList,
}

func init() {
	rootCmd.AddCommand(employeeCmd)
	employeeCmd.AddCommand(employeeAddCmd)
	employeeCmd.AddCommand(employeeListCmd)

	employeeAddCmd.Flags().String("first-name", "", "First name (required)")
	employeeAddCmd.Flags().String("second-name", "", "Second name (required)")
	employeeAddCmd.Flags().String("date-of-birth", "", "Date of birth (YYYY-MM-DD)")
	employeeAddCmd.Flags().String("phone", "", "Phone number")
	employeeAddCmd.Flags().String("email", "", "E-mail address")
	employeeAddCmd.Flags().String("home-address", "", "Home address")
	employeeAddCmd.Flags().String("position", "", "Job position")
	employeeAddCmd.Flags().String("other-info", "", "Free-form notes")

	employeeListCmd.Flags().String("query", "", "Only list employees whose name matches")
}

func runEmployeeAdd(cmd *cobra.Command, args []string) error {
	employee := &database.Employee{
		FirstName:   mustGetString(cmd, "first-name"),
		SecondName:  mustGetString(cmd, "second-name"),
		DateOfBirth: mustGetString(cmd, "date-of-birth"),
		Phone:       mustGetString(cmd, "phone"),
		Email:       mustGetString(cmd, "email"),
		HomeAddress: mustGetString(cmd, "home-address"),
		Position:    mustGetString(cmd, "position"),
		OtherInfo:   mustGetString(cmd, "other-info"),
	}
	if employee.FirstName == "" || employee.SecondName == "" {
		return errors.New("--first-name and --second-name are required")
	}
	if employee.DateOfBirth != "" {
		if _, err := time.Parse(time.DateOnly, employee.DateOfBirth); err != nil {
			return fmt.Errorf("--date-of-birth must be YYYY-MM-DD: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateEmployee(ctx, employee); err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}
	fmt.Printf("Created employee %s (%s)\n", employee.FullName(), employee.ID)
	return nil
}

func runEmployeeList(cmd *cobra.Command, args []string) error {
	query := mustGetString(cmd, "query")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	employees, err := store.ListEmployees(ctx)
	if err != nil {
		return fmt.Errorf("failed to list employees: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPOSITION\tENROLLED")
	shown := 0
	for _, e := range employees {
		if query != "" && !facematch.NameMatches(e.FullName(), query) {
			continue
		}
		enrolled := 0
		rec, err := store.GetBiometric(ctx, e.ID)
		switch {
		case err == nil:
			enrolled = len(rec.Encodings)
		case !errors.Is(err, database.ErrNotFound):
			return fmt.Errorf("failed to get biometrics of %s: %w", e.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.ID, e.FullName(), e.Position, enrolled)
		shown++
	}
	w.Flush()

	fmt.Printf("\n%d employees\n", shown)
	return nil
}
