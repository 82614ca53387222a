package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/workbay/garagedesk/internal/camera"
	"github.com/workbay/garagedesk/internal/jobcard"
	"github.com/workbay/garagedesk/internal/nav"
	"gopkg.in/yaml.v3"
)

// cardOpts holds the flags shared by jobcard create and edit.
type cardOpts struct {
	configPath string
	file       string
	images     map[string]string
	clear      []string
	video      string
	noVideo    bool
	capture    []string
	photo      string
	prices     bool
	yes        bool
}

func newJobCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobcard",
		Aliases: []string{"jc"},
		Short:   "Create, edit and view job cards",
	}

	cmd.AddCommand(newJobCardCreateCmd())
	cmd.AddCommand(newJobCardEditCmd())
	cmd.AddCommand(newJobCardShowCmd())
	return cmd
}

func addCardFlags(cmd *cobra.Command, o *cardOpts) {
	addConfigFlag(cmd, &o.configPath)
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "YAML file with job card fields")
	for i := jobcard.Slot(0); i < jobcard.NumSlots; i++ {
		name := i.String()
		cmd.Flags().String(name, "", fmt.Sprintf("%s vehicle image file", name))
	}
	cmd.Flags().StringSliceVar(&o.clear, "clear", nil, "image slots to empty (front, rear, left, right)")
	cmd.Flags().StringVar(&o.video, "video", "", "vehicle video file")
	cmd.Flags().BoolVar(&o.noVideo, "no-video", false, "remove the vehicle video")
	cmd.Flags().StringSliceVar(&o.capture, "capture", nil, "image slots to fill from the camera")
	cmd.Flags().StringVar(&o.photo, "photo", "", "still image used as the camera for --capture")
	cmd.Flags().BoolVar(&o.prices, "prices", false, "show job line prices in the preview")
	cmd.Flags().BoolVarP(&o.yes, "yes", "y", false, "save without the confirmation prompt")
}

// slotFlags reads the per-slot image flags into o.images.
func (o *cardOpts) slotFlags(cmd *cobra.Command) {
	o.images = make(map[string]string)
	for i := jobcard.Slot(0); i < jobcard.NumSlots; i++ {
		if v, _ := cmd.Flags().GetString(i.String()); v != "" {
			o.images[i.String()] = v
		}
	}
}

func newJobCardCreateCmd() *cobra.Command {
	var o cardOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job card",
		Long: "Fills a new job card from --file and the media flags, shows the preview and saves it.\n" +
			"At least one vehicle image is required.",
		Example: "  gd jobcard create -f card.yaml --front front.jpg --rear rear.jpg",
		RunE: func(cmd *cobra.Command, args []string) error {
			o.slotFlags(cmd)
			return runJobCardSave(cmd, o, "")
		},
	}

	addCardFlags(cmd, &o)
	return cmd
}

func newJobCardEditCmd() *cobra.Command {
	var o cardOpts

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an existing job card",
		Long: "Loads the job card, applies the non-empty fields of --file and the media flags,\n" +
			"shows the preview and saves it. Job lines in --file are appended.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.slotFlags(cmd)
			return runJobCardSave(cmd, o, args[0])
		},
	}

	addCardFlags(cmd, &o)
	return cmd
}

func runJobCardSave(cmd *cobra.Command, o cardOpts, id string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	start := nav.JobCardNew()
	if id != "" {
		start = nav.JobCardEdit(id)
	}
	a, err := loadApp(cmd, o.configPath, start)
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.requireLogin(); err != nil {
		return err
	}

	notifier, err := buildNotifier(a.cfg.Notify)
	if err != nil {
		return err
	}
	editor := jobcard.NewEditor(a.client, a.nav, jobcard.Options{
		ShowPrices:    o.prices || a.cfg.JobCard.ShowPrices,
		RedirectDelay: a.cfg.JobCard.RedirectDelay,
		Notifier:      notifier,
		Logger:        a.logger,
	})
	if id != "" {
		if err := editor.Load(ctx, id); err != nil {
			fmt.Fprintln(out, editor.Message())
			return err
		}
	}
	form := editor.Form()

	if o.file != "" {
		card, err := readCardFile(o.file)
		if err != nil {
			return err
		}
		if err := form.Apply(card); err != nil {
			return err
		}
	}
	if err := applyMedia(form, o); err != nil {
		return err
	}

	p := newPrompter(cmd)
	if len(o.capture) > 0 {
		ctrl := camera.NewController(buildDevice(a.cfg.Camera, o.photo), a.logger)
		defer ctrl.Close()
		for _, name := range o.capture {
			slot, err := jobcard.ParseSlot(name)
			if err != nil {
				return err
			}
			if err := captureSlot(ctx, out, ctrl, p, form, slot, o.yes); err != nil {
				return err
			}
		}
	}

	preview, err := editor.Preview()
	if err != nil {
		fmt.Fprintln(out, editor.Message())
		printFieldErrors(out, form.Errors())
		return err
	}
	if err := preview.Render(out); err != nil {
		return err
	}
	if !o.yes && !p.confirm("Save this job card?") {
		editor.ClosePreview()
		fmt.Fprintln(out, "Not saved")
		return nil
	}

	savedID, err := editor.ConfirmSave(ctx)
	if err != nil {
		fmt.Fprintln(out, editor.Message())
		printFieldErrors(out, form.Errors())
		return err
	}
	fmt.Fprintf(out, "%s (id: %s)\n", editor.Notice(), savedID)
	return nil
}

func newJobCardShowCmd() *cobra.Command {
	var (
		configPath string
		prices     bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobCardShow(cmd, configPath, args[0], prices)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&prices, "prices", false, "show job line prices")
	return cmd
}

func runJobCardShow(cmd *cobra.Command, configPath, id string, prices bool) error {
	out := cmd.OutOrStdout()
	a, err := loadApp(cmd, configPath, nav.JobCardEdit(id))
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.requireLogin(); err != nil {
		return err
	}

	editor := jobcard.NewEditor(a.client, a.nav, jobcard.Options{Logger: a.logger})
	if err := editor.Load(cmd.Context(), id); err != nil {
		fmt.Fprintln(out, editor.Message())
		return err
	}
	form := editor.Form()
	p := &jobcard.Preview{
		Card:       form.Card(),
		Images:     form.Images(),
		Video:      form.Video(),
		ShowPrices: prices || a.cfg.JobCard.ShowPrices,
	}
	return p.Render(out)
}

// readCardFile decodes a YAML job card.
func readCardFile(path string) (jobcard.JobCard, error) {
	var card jobcard.JobCard
	data, err := os.ReadFile(path)
	if err != nil {
		return card, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &card); err != nil {
		return card, fmt.Errorf("parse %s: %w", path, err)
	}
	return card, nil
}

// applyMedia sets or clears the image and video slots named by the flags.
func applyMedia(form *jobcard.Form, o cardOpts) error {
	for _, name := range o.clear {
		slot, err := jobcard.ParseSlot(name)
		if err != nil {
			return err
		}
		if err := form.ClearImage(slot); err != nil {
			return err
		}
	}
	for name, path := range o.images {
		slot, err := jobcard.ParseSlot(name)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s image: %w", name, err)
		}
		if err := form.SetImageFile(slot, jobcard.FileFromPath(path, contentType(path, "image/jpeg"))); err != nil {
			return err
		}
	}
	switch {
	case o.noVideo:
		form.ClearVideo()
	case o.video != "":
		if _, err := os.Stat(o.video); err != nil {
			return fmt.Errorf("video: %w", err)
		}
		form.SetVideoFile(jobcard.FileFromPath(o.video, contentType(o.video, "video/mp4")))
	}
	return nil
}

// contentType guesses the MIME type from the file extension.
func contentType(path, fallback string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return fallback
}

// captureSlot takes a photo for slot. On a camera error the operator may
// retry; after a snap they may retake before the photo is adopted.
func captureSlot(ctx context.Context, out io.Writer, ctrl *camera.Controller, p *prompter, form *jobcard.Form, slot jobcard.Slot, yes bool) error {
	c, err := ctrl.Open(ctx, slot.String())
	for attempt := 1; err != nil; attempt++ {
		fmt.Fprintf(out, "%s camera: %s\n", slot, camera.Message(err))
		if yes || attempt >= maxAttempts || !p.confirm("Retry?") {
			return fmt.Errorf("capture %s: %w", slot, err)
		}
		err = c.Retry(ctx)
	}

	for attempt := 1; ; attempt++ {
		photo, err := c.Snap(ctx)
		if err != nil {
			fmt.Fprintf(out, "%s camera: %s\n", slot, camera.Message(err))
			return fmt.Errorf("capture %s: %w", slot, err)
		}
		fmt.Fprintf(out, "Captured %s (%d bytes)\n", photo.Name, len(photo.Data))
		if yes || attempt >= maxAttempts || p.confirm("Use this photo?") {
			break
		}
		if err := c.Retake(ctx); err != nil {
			return fmt.Errorf("capture %s: %w", slot, err)
		}
	}

	photo, err := c.Confirm()
	if err != nil {
		return err
	}
	return form.SetImageFile(slot, jobcard.LocalFile{
		Name:        photo.Name,
		ContentType: photo.ContentType,
		Data:        photo.Data,
	})
}

// printFieldErrors lists field errors in a stable order.
func printFieldErrors(out io.Writer, errs map[string]string) {
	if len(errs) < 2 {
		return
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(out, "  %s: %s\n", f, errs[f])
	}
}
