package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/biometrics"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var biometricsCmd = &cobra.Command{
	Use:   "biometrics",
	Short: "Enroll and identify faces",
}

var biometricsEnrollCmd = &cobra.Command{
	Use:   "enroll <employee-id> <photo>...",
	Short: "Enroll face photos of an employee",
	Long: `Extract a face embedding from every photo and store them for the employee.
All photos must contain a face, otherwise nothing is stored.

Examples:
  # Add photos to the existing enrollment
  face-auth biometrics enroll 0b9e... front.jpg left.jpg right.jpg

  # Replace all previously enrolled photos
  face-auth biometrics enroll 0b9e... new.jpg --replace`,
	Args: cobra.MinimumNArgs(2),
	RunE: runBiometricsEnroll,
}

var biometricsIdentifyCmd = &cobra.Command{
	Use:   "identify <photo>",
	Short: "Identify the employee shown on a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runBiometricsIdentify,
}

func init() {
	rootCmd.AddCommand(biometricsCmd)
	biometricsCmd.AddCommand(biometricsEnrollCmd)
	biometricsCmd.AddCommand(biometricsIdentifyCmd)

	biometricsEnrollCmd.Flags().Bool("replace", false, "Replace the enrolled photos instead of appending")
}

func readPhotos(paths []string) ([][]byte, error) {
	photos := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // paths come from the operator
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		photos = append(photos, data)
	}
	return photos, nil
}

func runBiometricsEnroll(cmd *cobra.Command, args []string) error {
	employeeID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid employee id %q: %w", args[0], err)
	}
	photos, err := readPhotos(args[1:])
	if err != nil {
		return err
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

	svc, err := newBiometricsService(cfg, store)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Extracting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	svc.OnProgress = func(p biometrics.ProgressInfo) {
		bar.Set(p.Current)
	}

	if mustGetBool(cmd, "replace") {
		err = svc.Replace(ctx, employeeID, photos)
	} else {
		err = svc.Enroll(ctx, employeeID, photos)
	}
	bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled %d photos for %s\n", len(photos), employeeID)
	return nil
}

func runBiometricsIdentify(cmd *cobra.Command, args []string) error {
	photos, err := readPhotos(args)
	if err != nil {
		return err
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

	svc, err := newBiometricsService(cfg, store)
	if err != nil {
		return err
	}

	id, err := svc.Identify(ctx, photos[0])
	if errors.Is(err, facematch.ErrMatchNotFound) {
		fmt.Println("No matching employee")
		return nil
	}
	if err != nil {
		return err
	}

	employee, err := store.GetEmployee(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get employee %s: %w", id, err)
	}
	fmt.Printf("%s (%s)\n", employee.FullName(), employee.ID)
	return nil
}
