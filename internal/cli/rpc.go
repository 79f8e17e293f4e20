package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var rpcURL string

// rpcCmd represents the rpc command group
var rpcCmd = &cobra.Command{
	Use:   "rpc <method> [json-params]",
	Short: "Send an RPC command to a running server",
	Long: `Send a JSON-RPC command to a running goflashd server and print the
result. Parameters are passed as a single JSON object, for example:

  flashd rpc server_info
  flashd rpc balance_of '{"instance":"<hex>","asset":"<hex>","account":"<hex>"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRPC,
}

func init() {
	rootCmd.AddCommand(rpcCmd)
	rpcCmd.Flags().StringVar(&rpcURL, "url", "http://127.0.0.1:5005/", "server RPC endpoint")
}

func runRPC(cmd *cobra.Command, args []string) error {
	method := args[0]

	request := map[string]interface{}{"method": method}
	if len(args) == 2 {
		var params json.RawMessage
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			return fmt.Errorf("invalid params JSON: %w", err)
		}
		request["params"] = []json.RawMessage{params}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(rpcURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		// Not JSON, print as-is
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
