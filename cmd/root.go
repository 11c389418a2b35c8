package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"xorkevin.dev/ibu/config"
	"xorkevin.dev/ibu/sqldb"
	"xorkevin.dev/ibu/writefs"
	"xorkevin.dev/kerrors"
	"xorkevin.dev/klog"
)

type (
	Cmd struct {
		rootCmd    *cobra.Command
		version    string
		config     *viper.Viper
		log        *klog.LevelLogger
		stdin      io.Reader
		stdout     io.Writer
		stderr     io.Writer
		outfs      writefs.FS
		rootFlags  rootFlags
		queryFlags queryFlags
		execFlags  execFlags
		nameFlags  nameFlags
		docFlags   docFlags
	}

	rootFlags struct {
		cfgFile   string
		debugMode bool
		logLevel  string
		manifest  string
		database  string
		queryLog  string
	}
)

func New() *Cmd {
	return &Cmd{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		outfs:  writefs.NewOS("."),
	}
}

func (c *Cmd) Execute() {
	if err := c.run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(c.stderr, err)
		os.Exit(1)
	}
}

func (c *Cmd) run(ctx context.Context, args []string) error {
	c.version = readVersion()
	if overrideVersion := os.Getenv("IBU_OVERRIDE_VERSION"); overrideVersion != "" {
		c.version = overrideVersion
	}
	c.config = viper.New()
	rootCmd := &cobra.Command{
		Use:   "ibu",
		Short: "A database cursor utility",
		Long: `A database cursor utility that runs statements against the databases of a
project manifest and prints typecast results.`,
		Version:           c.version,
		PersistentPreRunE: c.initConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/.ibu.yaml)")
	rootCmd.PersistentFlags().BoolVar(&c.rootFlags.debugMode, "debug", false, "turn on debug output and record the query log")
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.logLevel, "log-level", "INFO", "log level")
	rootCmd.PersistentFlags().StringVarP(&c.rootFlags.manifest, "manifest", "m", config.DefaultManifest, "database manifest file")
	rootCmd.PersistentFlags().StringVarP(&c.rootFlags.database, "database", "d", "", "database alias (default is the manifest default or src)")
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.queryLog, "querylog", "", "write the query log to this file")
	for _, i := range []string{"log-level", "manifest", "database", "querylog"} {
		if err := c.config.BindPFlag(strings.ReplaceAll(i, "-", ""), rootCmd.PersistentFlags().Lookup(i)); err != nil {
			return kerrors.WithMsg(err, fmt.Sprintf("Failed to bind flag %s", i))
		}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetIn(c.stdin)
	rootCmd.SetOut(c.stdout)
	rootCmd.SetErr(c.stderr)
	c.rootCmd = rootCmd

	rootCmd.AddCommand(c.getQueryCmd())
	rootCmd.AddCommand(c.getExecCmd())
	rootCmd.AddCommand(c.getCallCmd())
	rootCmd.AddCommand(c.getNameCmd())
	rootCmd.AddCommand(c.getDocCmd())

	return rootCmd.ExecuteContext(ctx)
}

// initConfig reads in config file and ENV variables if set.
func (c *Cmd) initConfig(cmd *cobra.Command, args []string) error {
	if c.rootFlags.cfgFile != "" {
		c.config.SetConfigFile(c.rootFlags.cfgFile)
	} else {
		c.config.SetConfigName(".ibu")
		c.config.AddConfigPath(".")

		// Search config in XDG_CONFIG_HOME directory with name ".ibu" (without extension).
		if cfgdir, err := os.UserConfigDir(); err == nil {
			c.config.AddConfigPath(cfgdir)
		}
	}

	c.config.SetEnvPrefix("IBU")
	c.config.AutomaticEnv()
	c.config.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))

	configErr := c.config.ReadInConfig()

	level := c.config.GetString("loglevel")
	if c.rootFlags.debugMode {
		level = "DEBUG"
	}
	c.log = klog.NewLevelLogger(klog.New(
		klog.OptMinLevelStr(level),
		klog.OptHandler(klog.NewJSONSlogHandler(klog.NewSyncWriter(c.stderr))),
	))
	if configErr == nil {
		c.log.Debug(cmd.Context(), "Using config file", klog.AString("file", c.config.ConfigFileUsed()))
	} else {
		c.log.Debug(cmd.Context(), "Failed reading config file", klog.AString("err", configErr.Error()))
	}
	return nil
}

func (c *Cmd) debugEnabled() bool {
	return c.rootFlags.debugMode || c.config.GetString("querylog") != ""
}

// openConn opens the database selected by the manifest and database alias
func (c *Cmd) openConn(ctx context.Context) (*sqldb.Conn, error) {
	manifest := c.config.GetString("manifest")
	m, err := config.ReadManifest(os.DirFS(filepath.Dir(manifest)), filepath.Base(manifest), nil)
	if err != nil {
		return nil, err
	}
	db, alias, err := m.Database(c.config.GetString("database"))
	if err != nil {
		return nil, err
	}
	ctx = klog.CtxWithAttrs(ctx, klog.AString("db.alias", alias), klog.AString("db.driver", db.Driver))
	conn, err := sqldb.Open(ctx, db.Driver, db.DSN, sqldb.Opts{
		Debug: c.debugEnabled(),
		Log:   c.log.Logger,
	})
	if err != nil {
		return nil, kerrors.WithMsg(err, fmt.Sprintf("Failed to open database %s", alias))
	}
	c.log.Debug(ctx, "Opened database")
	return conn, nil
}

// withConn runs fn with an open connection, then writes the query log if
// requested and closes the connection
func (c *Cmd) withConn(ctx context.Context, fn func(ctx context.Context, conn *sqldb.Conn) error) (retErr error) {
	conn, err := c.openConn(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.log.Err(ctx, kerrors.WithMsg(err, "Failed to close database"))
		}
	}()
	defer func() {
		if err := c.writeQueryLog(conn); err != nil && retErr == nil {
			retErr = err
		}
	}()
	return fn(ctx, conn)
}

func (c *Cmd) writeQueryLog(conn *sqldb.Conn) error {
	name := c.config.GetString("querylog")
	if name == "" {
		return nil
	}
	fsys := c.outfs
	if filepath.IsAbs(name) {
		fsys = writefs.NewOS(filepath.Dir(name))
		name = filepath.Base(name)
	}
	if err := writefs.WriteFile(fsys, filepath.ToSlash(filepath.Clean(name)), conn.QueriesLog()); err != nil {
		return kerrors.WithMsg(err, "Failed to write query log")
	}
	return nil
}
