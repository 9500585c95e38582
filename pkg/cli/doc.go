/*
Package cli provides command-line interface utilities for Meridian.

The cli package includes output formatters, typed command errors, and the
signal handler used by the meridian command.

Output Formatting:

Command results can be rendered as plain text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
