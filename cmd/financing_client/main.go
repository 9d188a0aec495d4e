package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/invoice-financing-protocol/api/clients"
	"github.com/ruteri/invoice-financing-protocol/cmd/flags"
	"github.com/ruteri/invoice-financing-protocol/cryptoutils"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/urfave/cli/v2"
)

var flagBusiness = &cli.StringFlag{
	Name:     "business",
	Required: true,
	Usage:    "business address owning the invoice",
}

var flagInvoice = &cli.StringFlag{
	Name:     "invoice",
	Required: true,
	Usage:    "invoice id",
}

var flagScore = &cli.Uint64Flag{
	Name:     "score",
	Required: true,
	Usage:    "risk score 0-100",
}

var invoiceFlags = []cli.Flag{flagBusiness, flagInvoice}

func newClient(cCtx *cli.Context) (*clients.FinancingClient, error) {
	serverAddr := cCtx.String(flags.ServerAddrFlag.Name)
	keyFile := cCtx.String(flags.KeyFileFlag.Name)
	if keyFile == "" {
		return clients.NewFinancingClient(serverAddr, nil, clients.ClientOpts{}), nil
	}

	key, err := cryptoutils.LoadKeyFile(keyFile, cCtx.String(flags.KeyPassphraseFlag.Name))
	if err != nil {
		return nil, err
	}
	return clients.NewFinancingClient(serverAddr, key, clients.ClientOpts{}), nil
}

func addressArg(cCtx *cli.Context, name string) (interfaces.Address, error) {
	return interfaces.ParseAddress(cCtx.String(name))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withClient builds a command action from a function of the client.
func withClient(fn func(cCtx *cli.Context, c *clients.FinancingClient) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		c, err := newClient(cCtx)
		if err != nil {
			return err
		}
		return fn(cCtx, c)
	}
}

// invoiceAction runs fn against the invoice named by --invoice and --business.
func invoiceAction(fn func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error) cli.ActionFunc {
	return withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
		business, err := addressArg(cCtx, flagBusiness.Name)
		if err != nil {
			return err
		}
		return fn(cCtx, c, cCtx.String(flagInvoice.Name), business)
	})
}

func lookupResult(record any, found bool, err error) error {
	if err != nil {
		return err
	}
	if !found {
		return printJSON(map[string]any{"found": false})
	}
	return printJSON(record)
}

func main() {
	app := &cli.App{
		Name:  "financing-client",
		Usage: "Call the invoice financing protocol server",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.KeyFileFlag,
			flags.KeyPassphraseFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "generate-key",
				Usage: "generate a caller key and write it to --key-file",
				Action: func(cCtx *cli.Context) error {
					path := cCtx.String(flags.KeyFileFlag.Name)
					if path == "" {
						return fmt.Errorf("--%s is required", flags.KeyFileFlag.Name)
					}
					if _, err := os.Stat(path); err == nil {
						return fmt.Errorf("refusing to overwrite %s", path)
					}
					key, err := crypto.GenerateKey()
					if err != nil {
						return err
					}
					if err := cryptoutils.SaveKeyFile(path, key, cCtx.String(flags.KeyPassphraseFlag.Name)); err != nil {
						return err
					}
					fmt.Println(crypto.PubkeyToAddress(key.PublicKey).Hex())
					return nil
				},
			},
			{
				Name:  "address",
				Usage: "print the address of --key-file",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					fmt.Println(c.Address().Hex())
					return nil
				}),
			},
			{
				Name:      "verify",
				Usage:     "mark a business verified (admin)",
				ArgsUsage: "<business>",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					business, err := interfaces.ParseAddress(cCtx.Args().First())
					if err != nil {
						return err
					}
					return c.VerifyBusiness(cCtx.Context, business)
				}),
			},
			{
				Name:      "revoke",
				Usage:     "revoke a business verification (admin)",
				ArgsUsage: "<business>",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					business, err := interfaces.ParseAddress(cCtx.Args().First())
					if err != nil {
						return err
					}
					return c.RevokeVerification(cCtx.Context, business)
				}),
			},
			{
				Name:      "verified",
				Usage:     "check whether a business is verified",
				ArgsUsage: "<business>",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					business, err := interfaces.ParseAddress(cCtx.Args().First())
					if err != nil {
						return err
					}
					verified, err := c.IsBusinessVerified(cCtx.Context, business)
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"business": business, "verified": verified})
				}),
			},
			{
				Name:      "set-admin",
				Usage:     "transfer the admin role (admin)",
				ArgsUsage: "<new-admin>",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					newAdmin, err := interfaces.ParseAddress(cCtx.Args().First())
					if err != nil {
						return err
					}
					return c.SetAdmin(cCtx.Context, newAdmin)
				}),
			},
			{
				Name:      "add-assessor",
				Usage:     "grant the assessor role (admin)",
				ArgsUsage: "<assessor>",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					assessor, err := interfaces.ParseAddress(cCtx.Args().First())
					if err != nil {
						return err
					}
					return c.AddAssessor(cCtx.Context, assessor)
				}),
			},
			{
				Name:      "remove-assessor",
				Usage:     "revoke the assessor role (admin)",
				ArgsUsage: "<assessor>",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					assessor, err := interfaces.ParseAddress(cCtx.Args().First())
					if err != nil {
						return err
					}
					return c.RemoveAssessor(cCtx.Context, assessor)
				}),
			},
			{
				Name:  "register",
				Usage: "register an invoice owned by the caller",
				Flags: []cli.Flag{
					flagInvoice,
					&cli.Uint64Flag{Name: "amount", Required: true, Usage: "invoice amount"},
					&cli.Int64Flag{Name: "due-date", Required: true, Usage: "due date in unix seconds"},
					&cli.StringFlag{Name: "payer", Required: true, Usage: "payer address"},
				},
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					payer, err := addressArg(cCtx, "payer")
					if err != nil {
						return err
					}
					dueDate := time.Unix(cCtx.Int64("due-date"), 0)
					return c.RegisterInvoice(cCtx.Context, cCtx.String(flagInvoice.Name), cCtx.Uint64("amount"), dueDate, payer)
				}),
			},
			{
				Name:  "certify",
				Usage: "certify an invoice (admin)",
				Flags: invoiceFlags,
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					return c.CertifyInvoice(cCtx.Context, invoiceID, business)
				}),
			},
			{
				Name:  "invoice",
				Usage: "show an invoice",
				Flags: invoiceFlags,
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					return lookupResult(c.GetInvoice(cCtx.Context, invoiceID, business))
				}),
			},
			{
				Name:  "certified",
				Usage: "check whether an invoice is certified",
				Flags: invoiceFlags,
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					certified, err := c.IsInvoiceCertified(cCtx.Context, invoiceID, business)
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"certified": certified})
				}),
			},
			{
				Name:  "assess",
				Usage: "attach a risk score to a certified invoice (assessor)",
				Flags: append([]cli.Flag{flagScore}, invoiceFlags...),
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					return c.AssessRisk(cCtx.Context, invoiceID, business, cCtx.Uint64(flagScore.Name))
				}),
			},
			{
				Name:  "update-risk",
				Usage: "replace an existing risk score (assessor)",
				Flags: append([]cli.Flag{flagScore}, invoiceFlags...),
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					return c.UpdateRiskAssessment(cCtx.Context, invoiceID, business, cCtx.Uint64(flagScore.Name))
				}),
			},
			{
				Name:  "risk",
				Usage: "show the latest risk assessment",
				Flags: invoiceFlags,
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					return lookupResult(c.GetRiskScore(cCtx.Context, invoiceID, business))
				}),
			},
			{
				Name:  "fund",
				Usage: "fund an invoice from the caller",
				Flags: invoiceFlags,
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					resp, err := c.FundInvoice(cCtx.Context, invoiceID, business)
					if err != nil {
						return err
					}
					return printJSON(resp)
				}),
			},
			{
				Name:  "repay",
				Usage: "mark a funded invoice repaid (payer or business)",
				Flags: invoiceFlags,
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					return c.MarkInvoiceRepaid(cCtx.Context, invoiceID, business)
				}),
			},
			{
				Name:  "funding",
				Usage: "show the funding record of an invoice",
				Flags: invoiceFlags,
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					return lookupResult(c.GetFundingDetails(cCtx.Context, invoiceID, business))
				}),
			},
			{
				Name:  "state",
				Usage: "show the lifecycle state of an invoice",
				Flags: invoiceFlags,
				Action: invoiceAction(func(cCtx *cli.Context, c *clients.FinancingClient, invoiceID string, business interfaces.Address) error {
					state, err := c.InvoiceState(cCtx.Context, invoiceID, business)
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"state": state})
				}),
			},
			{
				Name:  "fee",
				Usage: "show the protocol fee in basis points",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					fee, err := c.GetFeePercentage(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"fee_basis_points": fee})
				}),
			},
			{
				Name:  "set-fee",
				Usage: "change the protocol fee (admin)",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "bps", Required: true, Usage: "fee in basis points (0-10000)"},
				},
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					return c.SetFeePercentage(cCtx.Context, cCtx.Uint64("bps"))
				}),
			},
			{
				Name:  "snapshot",
				Usage: "store a snapshot of the protocol state (admin)",
				Action: withClient(func(cCtx *cli.Context, c *clients.FinancingClient) error {
					resp, err := c.Snapshot(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(resp)
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
