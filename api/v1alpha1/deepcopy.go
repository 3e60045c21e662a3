package v1alpha1

// DeepCopyInto copies the receiver into out. in must be non-nil.
func (in *NodeUsage) DeepCopyInto(out *NodeUsage) {
	*out = *in
	if in.Apps != nil {
		out.Apps = make([]string, len(in.Apps))
		copy(out.Apps, in.Apps)
	}
}

// DeepCopy creates a new NodeUsage copied from the receiver.
func (in *NodeUsage) DeepCopy() *NodeUsage {
	if in == nil {
		return nil
	}
	out := new(NodeUsage)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out. in must be non-nil.
func (in *EdgeNode) DeepCopyInto(out *EdgeNode) {
	*out = *in
	out.CurrentUsage = in.CurrentUsage.DeepCopy()
	if in.KPIs != nil {
		out.KPIs = make(map[KPIName]float64, len(in.KPIs))
		for k, v := range in.KPIs {
			out.KPIs[k] = v
		}
	}
}

// DeepCopy creates a new EdgeNode copied from the receiver.
func (in *EdgeNode) DeepCopy() *EdgeNode {
	if in == nil {
		return nil
	}
	out := new(EdgeNode)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyNodes copies every node of the list.
func DeepCopyNodes(in []EdgeNode) []EdgeNode {
	if in == nil {
		return nil
	}
	out := make([]EdgeNode, len(in))
	for i := range in {
		in[i].DeepCopyInto(&out[i])
	}
	return out
}

// DeepCopy creates a new ApplicationTable copied from the receiver.
func (in ApplicationTable) DeepCopy() ApplicationTable {
	if in == nil {
		return nil
	}
	out := make(ApplicationTable, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
