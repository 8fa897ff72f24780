package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/guardian/pkg/kb"
)

var (
	recordTitle       string
	recordDescription string
	recordRootCause   string
	recordSolution    string
	recordSeverity    string
	recordPriority    string
	recordStatus      string
	recordTags        []string
	recordFiles       []string
	recordContext     string
	recordOutcome     string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a bug, requirement, or decision",
}

var recordBugCmd = &cobra.Command{
	Use:   "bug",
	Short: "Record a bug with its root cause and solution",
	RunE:  runRecordBug,
}

var recordReqCmd = &cobra.Command{
	Use:   "req",
	Short: "Record a requirement",
	RunE:  runRecordRequirement,
}

var recordDecisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Record an architectural decision",
	RunE:  runRecordDecision,
}

func init() {
	recordCmd.PersistentFlags().StringVarP(&recordTitle, "title", "t", "", "record title (required)")
	recordCmd.PersistentFlags().StringVarP(&recordDescription, "description", "d", "", "longer description")
	recordCmd.PersistentFlags().StringSliceVar(&recordTags, "tags", nil, "tags for lookup")
	_ = recordCmd.MarkPersistentFlagRequired("title")

	recordBugCmd.Flags().StringVar(&recordRootCause, "root-cause", "", "root cause analysis")
	recordBugCmd.Flags().StringVar(&recordSolution, "solution", "", "how the bug was fixed")
	recordBugCmd.Flags().StringVar(&recordSeverity, "severity", "", "low, medium, high, or critical")
	recordBugCmd.Flags().StringVar(&recordStatus, "status", "", "open, in-progress, resolved, or closed")
	recordBugCmd.Flags().StringSliceVar(&recordFiles, "files", nil, "files changed by the fix")

	recordReqCmd.Flags().StringVar(&recordPriority, "priority", "", "low, medium, high, or critical")
	recordReqCmd.Flags().StringVar(&recordStatus, "status", "", "planned, in-progress, completed, or cancelled")

	recordDecisionCmd.Flags().StringVar(&recordContext, "context", "", "what prompted the decision")
	recordDecisionCmd.Flags().StringVar(&recordOutcome, "decision", "", "what was decided")
	recordDecisionCmd.Flags().StringVar(&recordStatus, "status", "", "proposed, accepted, rejected, or deprecated")

	recordCmd.AddCommand(recordBugCmd)
	recordCmd.AddCommand(recordReqCmd)
	recordCmd.AddCommand(recordDecisionCmd)
	rootCmd.AddCommand(recordCmd)
}

func newRecordUpdater() (*kb.Updater, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	base, err := openKB(cfg, log.Zerolog())
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	return kb.NewUpdater(base), func() { log.Close() }, nil
}

func runRecordBug(cmd *cobra.Command, args []string) error {
	updater, done, err := newRecordUpdater()
	if err != nil {
		return err
	}
	defer done()

	id, err := updater.RecordBug(kb.Bug{
		Title:        recordTitle,
		Description:  recordDescription,
		RootCause:    recordRootCause,
		Solution:     recordSolution,
		FilesChanged: recordFiles,
		Tags:         recordTags,
		Severity:     recordSeverity,
		Status:       recordStatus,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Recorded %s\n", id)
	return nil
}

func runRecordRequirement(cmd *cobra.Command, args []string) error {
	updater, done, err := newRecordUpdater()
	if err != nil {
		return err
	}
	defer done()

	id, err := updater.RecordRequirement(kb.Requirement{
		Title:       recordTitle,
		Description: recordDescription,
		Priority:    recordPriority,
		Status:      recordStatus,
		Tags:        recordTags,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Recorded %s\n", id)
	return nil
}

func runRecordDecision(cmd *cobra.Command, args []string) error {
	updater, done, err := newRecordUpdater()
	if err != nil {
		return err
	}
	defer done()

	id, err := updater.RecordDecision(kb.Decision{
		Title:    recordTitle,
		Context:  recordContext,
		Decision: recordOutcome,
		Status:   recordStatus,
		Tags:     recordTags,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Recorded %s\n", id)
	return nil
}
