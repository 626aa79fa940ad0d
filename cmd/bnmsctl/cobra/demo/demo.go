/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package demo

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-uuid"
	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/sdk"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/bno"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/config"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/member"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/network/inmem"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v2"
)

const (
	operatorName = "O=BNO,L=New York,C=US"
	notaryName   = "O=Notary,L=London,C=GB"
)

var (
	// Members is the number of members joining the business network
	Members int
	// AutoActivate activates the memberships as soon as they are requested
	AutoActivate bool
	// Suspended is the number of members suspended after joining
	Suspended int
)

type Args struct {
	Members      int
	AutoActivate bool
	Suspended    int
}

// Cmd returns the Cobra Command for Demo
func Cmd() *cobra.Command {
	flags := cobraCommand.Flags()
	flags.IntVarP(&Members, "members", "m", 3, "number of members")
	flags.BoolVarP(&AutoActivate, "auto-activate", "a", false, "activate memberships on request")
	flags.IntVarP(&Suspended, "suspended", "s", 0, "number of members suspended after joining")

	return cobraCommand
}

var cobraCommand = &cobra.Command{
	Use:   "demo",
	Short: "Run a business network on an in-memory network.",
	Long: `Run a business network on an in-memory network.
The operator registers, the members join, and the memberships are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("trailing args detected")
		}
		// Parsing of the command line is done so silence cmd usage
		cmd.SilenceUsage = true
		return Run(cmd.Context(), cmd.OutOrStdout(), &Args{Members: Members, AutoActivate: AutoActivate, Suspended: Suspended})
	},
}

// Row is a membership as printed by the demo.
type Row struct {
	Member string `yaml:"member"`
	Status string `yaml:"status"`
}

// Output is what the operator and the first member see at the end of the demo.
type Output struct {
	BusinessNetwork string `yaml:"businessNetwork"`
	Operator        []Row  `yaml:"operator"`
	Member          []Row  `yaml:"member,omitempty"`
}

type node struct {
	*inmem.Node
	sdk *sdk.SDK
}

// Run runs the demo and writes its output as YAML.
func Run(ctx context.Context, w io.Writer, args *Args) error {
	if args.Members < 0 || args.Suspended < 0 || args.Suspended > args.Members {
		return errors.Errorf("invalid arguments: [%d] members, [%d] suspended", args.Members, args.Suspended)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	bnID, err := uuid.GenerateUUID()
	if err != nil {
		return errors.Wrap(err, "failed to generate business network id")
	}
	raw, err := yaml.Marshal(map[string]interface{}{
		"bnms": map[string]interface{}{
			"notary":       notaryName,
			"autoActivate": args.AutoActivate,
			"businessNetworks": []config.BusinessNetwork{
				{ID: bnID, Name: "Demo", Operator: operatorName},
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal configuration")
	}

	network := inmem.NewNetwork(membership.NewContractRegistry())
	defer network.Stop()
	if _, err := network.AddNotary(notaryName); err != nil {
		return err
	}
	newNode := func(name string) (*node, error) {
		n, err := network.AddNode(name)
		if err != nil {
			return nil, err
		}
		cp, err := config.NewProviderFromBytes(raw)
		if err != nil {
			return nil, err
		}
		s := sdk.NewSDK(n, cp)
		if err := s.Install(ctx); err != nil {
			return nil, errors.WithMessagef(err, "failed to install [%s]", name)
		}
		return &node{Node: n, sdk: s}, nil
	}

	operator, err := newNode(operatorName)
	if err != nil {
		return err
	}
	defer operator.sdk.Close()
	md := membership.MustMetadata(membership.RolesMetadata{Roles: []membership.Role{membership.OperatorRole}})
	if _, err := operator.Run(ctx, bno.NewRegisterBNOView(operator.sdk.Operator(), bnID, md)); err != nil {
		return errors.WithMessage(err, "failed to register the operator")
	}

	var members []*node
	for i := 0; i < args.Members; i++ {
		name := fmt.Sprintf("O=Member%d,L=London,C=GB", i)
		m, err := newNode(name)
		if err != nil {
			return err
		}
		members = append(members, m)
		md := membership.MustMetadata(membership.SimpleMetadata{Role: "Member", DisplayedName: fmt.Sprintf("Member %d", i)})
		if _, err := m.Run(ctx, member.NewRequestMembershipView(m.sdk.Member(), bnID, operator.Party(), md)); err != nil {
			return errors.WithMessagef(err, "failed to request membership for [%s]", name)
		}
		if !args.AutoActivate {
			if _, err := operator.Run(ctx, bno.NewActivateMembershipForPartyView(operator.sdk.Operator(), bnID, m.Party())); err != nil {
				return errors.WithMessagef(err, "failed to activate [%s]", name)
			}
		}
	}
	network.Wait()

	for i := 0; i < args.Suspended; i++ {
		m := members[len(members)-1-i]
		if _, err := operator.Run(ctx, bno.NewSuspendMembershipForPartyView(operator.sdk.Operator(), bnID, m.Party())); err != nil {
			return errors.WithMessagef(err, "failed to suspend [%s]", m.Party())
		}
	}

	bn := membership.BusinessNetwork{ID: bnID, Name: "Demo", Operator: operator.Party()}
	out := &Output{BusinessNetwork: bnID}
	projections, err := operator.sdk.Index().Projections(ctx, bn)
	if err != nil {
		return err
	}
	for _, p := range projections {
		out.Operator = append(out.Operator, Row{Member: p.MemberName, Status: p.Status.String()})
	}
	if len(members) > 0 && args.Suspended < len(members) {
		res, err := members[0].Run(ctx, member.NewGetMembershipsView(members[0].sdk.Member(), bnID, operator.Party(), true, true))
		if err != nil {
			return errors.WithMessage(err, "failed to get memberships")
		}
		for _, r := range res.(member.Memberships) {
			out.Member = append(out.Member, Row{Member: r.State.Member.Name, Status: r.State.Status.String()})
		}
		sortRows(out.Member)
	}

	raw, err = yaml.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}
	_, err = w.Write(raw)
	return err
}

func sortRows(rows []Row) {
	slices.SortFunc(rows, func(a, b Row) int { return strings.Compare(a.Member, b.Member) })
}
