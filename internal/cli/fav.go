package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var favCmd = &cobra.Command{
	Use:   "fav",
	Short: "Manage favorite ports",
	Long: `Favorite ports sort first in every listing and stay visible as
inactive placeholders when nothing is bound to them.`,
	RunE: runFavList,
}

var favAddCmd = &cobra.Command{
	Use:   "add <port>",
	Short: "Add a port to favorites",
	Args:  cobra.ExactArgs(1),
	RunE:  runFavAdd,
}

var favRmCmd = &cobra.Command{
	Use:   "rm <port>",
	Short: "Remove a port from favorites",
	Args:  cobra.ExactArgs(1),
	RunE:  runFavRm,
}

func init() {
	favCmd.AddCommand(favAddCmd)
	favCmd.AddCommand(favRmCmd)
}

func runFavList(cmd *cobra.Command, args []string) error {
	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	favorites := app.monitor.Store().Favorites()

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(favorites)
	}

	if len(favorites) == 0 {
		fmt.Println("No favorite ports. Add one with 'portward fav add <port>'.")
		return nil
	}
	for _, p := range favorites {
		fmt.Println(p)
	}
	return nil
}

func runFavAdd(cmd *cobra.Command, args []string) error {
	portNum, err := parsePortArg(args[0])
	if err != nil {
		return err
	}

	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	app.monitor.Store().AddFavorite(portNum)
	app.savePrefs()
	fmt.Printf("Port %d added to favorites.\n", portNum)
	return nil
}

func runFavRm(cmd *cobra.Command, args []string) error {
	portNum, err := parsePortArg(args[0])
	if err != nil {
		return err
	}

	app, err := buildApp(os.Stderr)
	if err != nil {
		return err
	}

	app.monitor.Store().RemoveFavorite(portNum)
	app.savePrefs()
	fmt.Printf("Port %d removed from favorites.\n", portNum)
	return nil
}

func parsePortArg(arg string) (int, error) {
	portNum, err := strconv.Atoi(arg)
	if err != nil || portNum < 0 || portNum > 65535 {
		return 0, fmt.Errorf("invalid port number: %q", arg)
	}
	return portNum, nil
}
